package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nexus-quest/pulse/internal/domain"
)

const barWidth = 20 // Characters for the burnout gauge

// printInsights renders insights as an aligned table.
func printInsights(w io.Writer, insights []domain.Insight) error {
	if len(insights) == 0 {
		_, err := fmt.Fprintln(w, "No insights right now. Keep going!")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tDOMAIN\tINSIGHT\tACTION")
	for _, in := range insights {
		action := in.ActionLabel
		if in.ActionTarget != "" {
			action += " → " + in.ActionTarget
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", in.Severity, in.Domain, in.Icon, in.Title, action)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, in := range insights {
		fmt.Fprintf(w, "\n%s %s\n  %s\n", in.Icon, in.Title, in.Description)
	}
	return nil
}

// printSynthesis renders one synthesis with a burnout gauge.
func printSynthesis(w io.Writer, s domain.AISynthesis) {
	fmt.Fprintf(w, "Momentum: %s\n", s.Momentum)
	fmt.Fprintf(w, "Burnout:  %s %.0f%%\n", riskBar(s.BurnoutRisk), s.BurnoutRisk*100)
	fmt.Fprintf(w, "\n%s\n\nNext: %s\n", s.Summary, s.Suggestion)
	if s.CelebrationOpportunity != "" {
		fmt.Fprintf(w, "Celebrate: %s\n", s.CelebrationOpportunity)
	}
}

// riskBar draws [██████░░░░] for a value in [0,1].
func riskBar(v float64) string {
	v = max(0, min(1, v))
	filled := int(v*barWidth + 0.5)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}
