package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/daemon"
	"github.com/nexus-quest/pulse/internal/domain"
)

func init() {
	insightsCmd.Flags().StringVar(&insightsDomain, "domain", "", "Only show insights for one domain (energy, quests, habits, vocab, focus, streaks, goals, cross-domain)")
	insightsCmd.Flags().BoolVar(&insightsJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(insightsCmd)
}

var (
	insightsDomain string
	insightsJSON   bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights [state.json]",
	Short: "Evaluate the rule bank against a player-state file",
	Long: `Evaluate every local rule against a player-state JSON file and print the
ranked insights. Without an argument the [pulse] state_file from config is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInsights,
}

func runInsights(cmd *cobra.Command, args []string) error {
	d := domain.InsightDomain(insightsDomain)
	if d != "" && !domain.ValidDomain(d) {
		return fmt.Errorf("unknown domain %q", insightsDomain)
	}

	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	state, err := loadState(cfg, args)
	if err != nil {
		return err
	}
	ec, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	insights := pulse.FilterDomain(pulse.Evaluate(state, time.Now().In(ec.Location)), d)
	if insightsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if insights == nil {
			insights = []domain.Insight{}
		}
		return enc.Encode(insights)
	}
	return printInsights(os.Stdout, insights)
}

// loadState reads the state file named by args[0] or by the config.
func loadState(cfg daemon.Config, args []string) (domain.State, error) {
	path := cfg.Pulse.StateFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return domain.State{}, errors.New("no state file: pass one or set [pulse] state_file")
	}
	return daemon.LoadStateFile(path)
}
