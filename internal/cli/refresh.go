package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/daemon"
	"github.com/nexus-quest/pulse/internal/domain"
	"github.com/nexus-quest/pulse/internal/infra/synth"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [state.json]",
	Short: "Run a forced AI synthesis and store it",
	Long: `Build a snapshot from the player-state file, call the configured synthesis
provider (bypassing the cooldown), store the result in the cache and history,
and print it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
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
	provider, err := synth.New(ctx, cfg.ProviderConfig())
	if err != nil {
		return err
	}
	if _, ok := provider.(synth.Disabled); ok {
		return errors.New("synthesis is disabled: set [synthesis] provider in " + daemon.ConfigPath())
	}

	db, kv, err := daemon.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	orch := pulse.NewOrchestrator(provider, kv, func() domain.State { return state }, ec)
	defer orch.Close()

	fmt.Fprintf(os.Stderr, "[...] asking %s\n", provider.Name())
	if outcome := orch.Refresh(ctx, domain.EventManual, true); outcome != pulse.OutcomeStored {
		return fmt.Errorf("synthesis %s (see log above)", outcome)
	}

	syn, ok := orch.Cache().GetCached()
	if !ok {
		return errors.New("synthesis stored but not readable")
	}
	printSynthesis(os.Stdout, syn)
	return nil
}
