package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"prospect/internal/validator"
)

var (
	examplesRPC   string
	examplesLimit int
)

var examplesCmd = &cobra.Command{
	Use:   "examples <program-id>...",
	Short: "Fetch recent example transactions for programs",
	Long: `examples pulls the latest transactions touching each listed program
from a public RPC endpoint and prints them flattened to the instruction
level. Useful for seeding prompts with real instruction shapes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		fetcher, err := validator.NewExampleFetcher(ctx, examplesRPC, examplesLimit, logger.Named("examples"))
		if err != nil {
			return err
		}
		defer fetcher.Close()

		for _, programID := range args {
			examples, err := fetcher.Examples(ctx, programID)
			if err != nil {
				pterm.Error.Printfln("%s: %v", programID, err)
				continue
			}
			pterm.DefaultSection.Printfln("%s (%d transactions)", programID, len(examples))
			for _, example := range examples {
				status := "ok"
				if !example.Succeeded {
					status = "failed"
				}
				pterm.Info.Printfln("%s slot=%d %s", example.Signature, example.Slot, status)
				for _, inst := range example.Instructions {
					marker := "-"
					if inst.Inner {
						marker = "  >"
					}
					data := inst.Data
					if len(data) > 24 {
						data = data[:24] + "..."
					}
					fmt.Printf("  %s %s accounts=%d data=%s\n", marker, inst.ProgramID, inst.Accounts, data)
				}
			}
		}
		return nil
	},
}

func init() {
	examplesCmd.Flags().StringVar(&examplesRPC, "fetch-rpc", "https://api.mainnet-beta.solana.com", "RPC endpoint to fetch examples from")
	examplesCmd.Flags().IntVar(&examplesLimit, "limit", 5, "transactions per program")
}
