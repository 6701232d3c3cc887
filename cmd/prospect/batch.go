package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"prospect/internal/explorer"
)

var (
	batchModels   []string
	batchRuns     int
	batchWatch    bool
	batchExternal bool
	batchUpstream string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run several models in parallel and compare them",
	Long: `batch starts runs-per-model independent runs for every listed model,
all in parallel against the same replica. Runs share nothing but the
replica; each has its own identity, ledger and artifact namespace.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		h, err := newHarness(ctx, env, harnessOptions{
			withWatch:         batchWatch,
			externalValidator: batchExternal,
			upstream:          batchUpstream,
		})
		if err != nil {
			return err
		}
		defer h.close()

		models := batchModels
		if len(models) == 0 {
			models = []string{settings.Model}
		}

		type slot struct {
			model  string
			report *explorer.RunReport
			err    error
		}
		slots := make([]slot, 0, len(models)*batchRuns)
		for _, model := range models {
			for i := 0; i < batchRuns; i++ {
				slots = append(slots, slot{model: model})
			}
		}

		pterm.Info.Printfln("starting %d runs (%d models x %d)", len(slots), len(models), batchRuns)
		var wg sync.WaitGroup
		for i := range slots {
			wg.Add(1)
			go func(s *slot) {
				defer wg.Done()
				s.report, s.err = h.executeRun(ctx, s.model)
			}(&slots[i])
		}
		wg.Wait()

		data := pterm.TableData{{"Model", "Run", "Termination", "Turns", "Reward", "Discovered"}}
		totals := make(map[string][]int)
		for _, s := range slots {
			if s.report == nil {
				data = append(data, []string{s.model, "-", "failed to start", "-", "-", "-"})
				pterm.Error.Printfln("%s: %v", s.model, s.err)
				continue
			}
			data = append(data, []string{
				s.model,
				s.report.RunID,
				string(s.report.Termination),
				fmt.Sprint(s.report.Turns),
				fmt.Sprint(s.report.CumulativeReward),
				fmt.Sprint(len(s.report.Discoveries)),
			})
			totals[s.model] = append(totals[s.model], s.report.CumulativeReward)
		}
		_ = pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(data).Render()

		names := make([]string, 0, len(totals))
		for model := range totals {
			names = append(names, model)
		}
		sort.Strings(names)
		for _, model := range names {
			rewards := totals[model]
			sum := 0
			for _, r := range rewards {
				sum += r
			}
			pterm.Info.Printfln("%s: mean reward %.1f over %d run(s)", model, float64(sum)/float64(len(rewards)), len(rewards))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchModels, "models", nil, "model identifiers to compare (default: the configured model)")
	batchCmd.Flags().IntVar(&batchRuns, "runs-per-model", 1, "independent runs per model")
	batchCmd.Flags().BoolVar(&batchWatch, "watch", false, "serve the live watch endpoints during the batch")
	batchCmd.Flags().BoolVar(&batchExternal, "external-validator", false, "use an already-running replica instead of launching one")
	batchCmd.Flags().StringVar(&batchUpstream, "upstream", "", "upstream RPC the replica forks its state from")
}
