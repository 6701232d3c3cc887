package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prospect/internal/config"
	"prospect/internal/logging"
)

var (
	flagEnvironment string
	flagModel       string
	flagRPCURL      string
	flagTurns       int
	flagLogFile     string
	flagVerbose     bool

	settings *config.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "prospect",
	Short: "Reward-driven exploration harness for Solana program discovery",
	Long: `prospect runs a code-generating model against a sandboxed Solana
replica. Each run gives the model a bounded number of turns to write
TypeScript that lands transactions; every new (program, instruction)
pair in a successful transaction earns a point.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagModel != "" {
			settings.Model = flagModel
		}
		if flagRPCURL != "" {
			settings.RPCURL = flagRPCURL
		}
		if flagTurns > 0 {
			settings.MaxTurns = flagTurns
		}
		if flagLogFile != "" {
			settings.LogFile = flagLogFile
		}

		level := "info"
		if flagVerbose {
			level = "debug"
		}
		logger, err = logging.New(logging.Config{Level: level, File: settings.LogFile})
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagEnvironment, "environment", "e", "", "environment definition JSON file")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "model identifier (overrides PROSPECT_MODEL)")
	rootCmd.PersistentFlags().StringVar(&flagRPCURL, "rpc-url", "", "replica RPC endpoint (overrides PROSPECT_RPC_URL)")
	rootCmd.PersistentFlags().IntVarP(&flagTurns, "turns", "t", 0, "turn budget per run")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "mirror logs to this file as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(examplesCmd)
}

func loadEnvironment() (*config.Environment, error) {
	if strings.TrimSpace(flagEnvironment) == "" {
		return config.DefaultEnvironment(), nil
	}
	return config.LoadEnvironment(flagEnvironment)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
