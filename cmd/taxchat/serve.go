package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tax-assistant/handler"
	"tax-assistant/internal/app"
	"tax-assistant/internal/config"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the answer service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts,
				config.BindFlag("server.addr", cmd.Flags().Lookup("addr")),
				config.BindFlag("store.path", cmd.Flags().Lookup("db")),
			)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().String("addr", config.DefaultServerAddr, "Listen address")
	cmd.Flags().String("db", config.DefaultStorePath, "SQLite history database path")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log.Level)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close app", "err", err)
		}
	}()

	if a.Retention != nil {
		if err := a.Retention.Start(); err != nil {
			return err
		}
	}

	srv := handler.NewServer(cfg.Server.Addr, a.Handler, logger)
	logger.Info("taxchat ready",
		"addr", cfg.Server.Addr,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"store", cfg.Store.Driver)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
