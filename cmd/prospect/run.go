package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"prospect/internal/explorer"
)

var (
	runWatch    bool
	runExternal bool
	runUpstream string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one exploration run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		h, err := newHarness(ctx, env, harnessOptions{
			withWatch:         runWatch,
			externalValidator: runExternal,
			upstream:          runUpstream,
		})
		if err != nil {
			return err
		}
		defer h.close()

		report, err := h.executeRun(ctx, settings.Model)
		if report != nil {
			printReport(report)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "serve the live watch endpoints during the run")
	runCmd.Flags().BoolVar(&runExternal, "external-validator", false, "use an already-running replica instead of launching one")
	runCmd.Flags().StringVar(&runUpstream, "upstream", "", "upstream RPC the replica forks its state from")
}

func printReport(report *explorer.RunReport) {
	switch report.Termination {
	case explorer.TerminationBudgetExhausted:
		pterm.Success.Printfln("run %s finished: %d reward over %d turns", report.RunID, report.CumulativeReward, report.Turns)
	case explorer.TerminationCanceled:
		pterm.Warning.Printfln("run %s canceled after %d turns (%d reward)", report.RunID, report.Turns, report.CumulativeReward)
	default:
		pterm.Error.Printfln("run %s aborted: %v", report.RunID, report.FatalErr)
	}

	if len(report.Transcript) > 0 {
		data := pterm.TableData{{"Turn", "Outcome", "Reward", "Total", "New keys", "ms"}}
		for _, rec := range report.Transcript {
			data = append(data, []string{
				fmt.Sprint(rec.Index),
				string(rec.Outcome),
				fmt.Sprint(rec.RewardDelta),
				fmt.Sprint(rec.CumulativeReward),
				fmt.Sprint(len(rec.NewKeys)),
				fmt.Sprint(rec.DurationMs),
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(data).Render()
	}

	if len(report.Discoveries) > 0 {
		pterm.Info.Printfln("%d distinct (program, instruction) pairs discovered", len(report.Discoveries))
	}
}
