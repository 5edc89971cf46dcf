package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tax-assistant/internal/config"
	"tax-assistant/internal/integrations/answerservice"
)

func historyCmd(opts *globalOptions) *cobra.Command {
	var (
		userID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently answered questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts,
				config.BindFlag("client.service_url", cmd.Flags().Lookup("server")),
			)
			if err != nil {
				return err
			}
			client, err := answerservice.New(cfg.Client.ServiceURL, answerservice.WithTimeout(cfg.Client.Timeout))
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.History.Limit
			}

			exs, err := client.History(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(exs) == 0 {
				fmt.Fprintln(out, "No history.")
				return nil
			}
			for _, ex := range exs {
				fmt.Fprintf(out, "[%s]\nQ: %s\nA: %s\n\n", ex.Timestamp.Local().Format(time.DateTime), ex.Prompt, ex.Response)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (defaults to the server's)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of entries")
	cmd.Flags().String("server", config.DefaultServiceURL, "Answer service base URL")
	return cmd
}
