package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/live/pkg/config"
	clierrors "github.com/zfogg/sidechain/live/pkg/errors"
	"github.com/zfogg/sidechain/live/pkg/logger"
	"github.com/zfogg/sidechain/live/pkg/output"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "sidechain-live",
	Short: "Sidechain Live - presence, typing and follows from the terminal",
	Long: `Sidechain Live shows who is around on Sidechain, who is typing in a
room, and lets you follow people, all from the terminal. It also ships
a local relay for development.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("error initializing config: %w", err)
		}

		logger.Init(verbose)

		if outputFmt != "" {
			if !output.ValidateOutputFormat(outputFmt) {
				return fmt.Errorf("invalid output format %q (use text, json or table)", outputFmt)
			}
			// Applies to this run only
			config.Set("output.format", outputFmt)
		}
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprint(os.Stderr, clierrors.FormatError(err))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/sidechain/live/config.toml)")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "output", "", "Output format: text, json, table")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(roomCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(versionCmd)
}
