// Package main is the taxchat binary: the answer service and its command-line
// client.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tax-assistant/internal/config"
	"tax-assistant/internal/flow"
)

const appName = "taxchat"

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		// A failed submission has already been shown in the display output.
		var serr *flow.SubmissionError
		if !errors.As(err, &serr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Tax question assistant",
		Long:          "taxchat answers tax questions for business and student audiences through an LLM-backed answer service.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(opts),
		askCmd(opts),
		historyCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// loadConfig reads the configuration with the persistent flags bound on top.
func loadConfig(cmd *cobra.Command, opts *globalOptions, binds ...config.Option) (*config.Config, error) {
	binds = append(binds, config.BindFlag("log.level", cmd.Flags().Lookup("log-level")))
	return config.Load(opts.configPath, binds...)
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
