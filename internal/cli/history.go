package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/daemon"
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", pulse.DefaultContextEntries, "Number of days to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the stored history and cached synthesis")
	rootCmd.AddCommand(historyCmd)
}

var (
	historyLimit int
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored daily syntheses",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	db, kv, err := daemon.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if historyClear {
		for _, key := range []string{pulse.HistoryKey, pulse.CacheKey} {
			if err := db.Delete(key); err != nil {
				return fmt.Errorf("clear %s: %w", key, err)
			}
		}
		fmt.Fprintln(os.Stderr, "[ok] history and cached synthesis cleared")
		return nil
	}

	entries := pulse.NewHistory(kv, cfg.Pulse.HistoryDays).Read(historyLimit)
	if len(entries) == 0 {
		fmt.Println("No synthesis history yet. Run 'pulse refresh' to create one.")
		return nil
	}

	if at, err := db.UpdatedAt(pulse.HistoryKey); err == nil && !at.IsZero() {
		fmt.Printf("Last written %s\n\n", at.Local().Format("2006-01-02 15:04"))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tMOMENTUM\tBURNOUT\tQUESTS 7D\tSUMMARY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.Day,
			e.Synthesis.Momentum,
			riskBar(e.Synthesis.BurnoutRisk),
			e.Snapshot.QuestsCompleted7d,
			truncate(e.Synthesis.Summary, 60),
		)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
