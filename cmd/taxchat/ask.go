package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tax-assistant/internal/config"
	"tax-assistant/internal/domain"
	"tax-assistant/internal/flow"
	"tax-assistant/internal/integrations/answerservice"
)

const (
	cmdStudent  = ":student"
	cmdBusiness = ":business"
	cmdClear    = ":clear"
	cmdQuit     = ":quit"
)

func askCmd(opts *globalOptions) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a tax question (interactive when no question is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts,
				config.BindFlag("client.service_url", cmd.Flags().Lookup("server")),
			)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)

			mode, err := domain.ParseAudienceMode(modeFlag)
			if err != nil {
				return err
			}
			client, err := answerservice.New(cfg.Client.ServiceURL, answerservice.WithTimeout(cfg.Client.Timeout))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			f := flow.New(client,
				flow.WithMode(mode),
				flow.WithLogger(logger),
				flow.WithObserver(func(d flow.Display) { printDisplay(out, d) }),
			)

			if len(args) > 0 {
				f.SetQuestion(strings.Join(args, " "))
				_, err := f.Submit(cmd.Context())
				return err
			}
			return runInteractive(cmd.Context(), f, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(domain.DefaultAudience), "Audience mode (business, student)")
	cmd.Flags().String("server", config.DefaultServiceURL, "Answer service base URL")
	return cmd
}

// runInteractive reads questions line by line. Enter submits; a trailing
// backslash continues the question on the next line.
func runInteractive(ctx context.Context, f *flow.Flow, in io.Reader, out io.Writer) error {
	printDisplay(out, f.Display())
	fmt.Fprintf(out, "Commands: %s %s %s %s\n", cmdStudent, cmdBusiness, cmdClear, cmdQuit)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var pending []string

	prompt := func() {
		if len(pending) > 0 {
			fmt.Fprint(out, "... ")
			return
		}
		fmt.Fprintf(out, "[%s] %s\n> ", f.Mode(), f.Placeholder())
	}

	prompt()
	for sc.Scan() {
		line := sc.Text()

		if len(pending) == 0 {
			switch strings.TrimSpace(line) {
			case cmdQuit:
				return nil
			case cmdStudent:
				f.OnAudienceModeChange(domain.AudienceStudent)
				prompt()
				continue
			case cmdBusiness:
				f.OnAudienceModeChange(domain.AudienceBusiness)
				prompt()
				continue
			case cmdClear:
				f.Reset()
				fmt.Fprintln(out, "(cleared)")
				prompt()
				continue
			}
		}

		if strings.HasSuffix(line, `\`) {
			pending = append(pending, strings.TrimSuffix(line, `\`))
			prompt()
			continue
		}
		pending = append(pending, line)
		f.SetQuestion(strings.Join(pending, "\n"))
		pending = nil

		if _, err := f.KeyDown(ctx, flow.Key{Name: flow.KeyEnter}); err != nil {
			var serr *flow.SubmissionError
			if !errors.As(err, &serr) {
				return err
			}
		}
		prompt()
	}
	return sc.Err()
}

func printDisplay(w io.Writer, d flow.Display) {
	if d.Empty() {
		return
	}
	for _, line := range d.Lines() {
		fmt.Fprintln(w, line)
	}
}
