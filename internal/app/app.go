// Package app assembles the answer service from configuration. Both the
// taxchat server and the Lambda entry point build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"tax-assistant/handler"
	"tax-assistant/internal/config"
	"tax-assistant/internal/integrations/gemini"
	"tax-assistant/internal/integrations/openai"
	"tax-assistant/internal/integrations/paramstore"
	"tax-assistant/internal/metrics"
	"tax-assistant/internal/repository"
	"tax-assistant/internal/retention"
	"tax-assistant/internal/usecase"
)

// App is a fully wired answer service.
type App struct {
	Service   *usecase.ChatService
	Handler   *handler.Handler
	Metrics   *metrics.Metrics
	Retention *retention.Scheduler

	closers []func() error
}

type builder struct {
	cfg    *config.Config
	logger *slog.Logger

	awsCfg    *aws.Config
	params    *paramstore.Client
	loadAWSFn func(ctx context.Context) (aws.Config, error)
}

// Build creates the LLM provider, the history store, the service and the
// HTTP handler. Retention is prepared but not started.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &builder{cfg: cfg, logger: logger, loadAWSFn: func(ctx context.Context) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	}}
	return b.build(ctx)
}

func (b *builder) build(ctx context.Context) (*App, error) {
	a := &App{Metrics: metrics.New()}

	llm, err := b.llmClient(ctx)
	if err != nil {
		return nil, err
	}

	store, err := b.historyStore(ctx, a)
	if err != nil {
		return nil, err
	}

	svc, err := usecase.NewChatService(llm, store, usecase.Settings{
		Model:        b.cfg.LLM.Model,
		Temperature:  b.cfg.LLM.Temperature,
		TopP:         b.cfg.LLM.TopP,
		MaxTokens:    b.cfg.LLM.MaxTokens,
		UserID:       b.cfg.History.UserID,
		HistoryLimit: b.cfg.History.Limit,
		Timeout:      b.cfg.LLM.Timeout,
	}, usecase.WithLogger(b.logger), usecase.WithRecorder(a.Metrics))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: chat service: %w", err)
	}
	a.Service = svc

	h, err := handler.NewHandler(svc,
		handler.WithLogger(b.logger),
		handler.WithMetrics(a.Metrics.Handler()),
		handler.WithCORS(b.cfg.Server.CORS),
	)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: handler: %w", err)
	}
	a.Handler = h

	if pruner, ok := store.(retention.Pruner); ok && b.cfg.Store.Retention > 0 {
		sched, err := retention.New(pruner, b.cfg.Store.Retention, b.cfg.Store.PruneSchedule, b.logger)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: retention: %w", err)
		}
		a.Retention = sched
	}
	return a, nil
}

func (b *builder) awsConfig(ctx context.Context) (aws.Config, error) {
	if b.awsCfg != nil {
		return *b.awsCfg, nil
	}
	cfg, err := b.loadAWSFn(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
	}
	b.awsCfg = &cfg
	return cfg, nil
}

func (b *builder) paramStore(ctx context.Context) (*paramstore.Client, error) {
	if b.params != nil {
		return b.params, nil
	}
	cfg, err := b.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("app: paramstore: %w", err)
	}
	b.params = ps
	return ps, nil
}

func (b *builder) llmClient(ctx context.Context) (usecase.LLMClient, error) {
	llmCfg := b.cfg.LLM
	if !b.cfg.HasLLMKey() {
		return nil, errors.New("app: no LLM API key configured (set llm.api_key, GROQ_API_KEY or llm.api_key_param)")
	}

	switch llmCfg.Provider {
	case "gemini":
		key := strings.TrimSpace(llmCfg.APIKey)
		if key == "" {
			ps, err := b.paramStore(ctx)
			if err != nil {
				return nil, err
			}
			if key, err = ps.GetToken(ctx, llmCfg.APIKeyParam); err != nil {
				return nil, fmt.Errorf("app: gemini key: %w", err)
			}
		}
		client, err := gemini.NewClient(ctx, key, llmCfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return client, nil

	default:
		opts := []openai.Option{
			openai.WithHTTPClient(&http.Client{Timeout: llmCfg.Timeout}),
		}
		if llmCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmCfg.BaseURL))
		}
		if key := strings.TrimSpace(llmCfg.APIKey); key != "" {
			opts = append(opts, openai.WithAPIKey(key))
		} else {
			ps, err := b.paramStore(ctx)
			if err != nil {
				return nil, err
			}
			opts = append(opts, openai.WithParamStoreKey(ps, llmCfg.APIKeyParam))
		}
		client, err := openai.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return client, nil
	}
}

func (b *builder) historyStore(ctx context.Context, a *App) (usecase.HistoryStore, error) {
	switch b.cfg.Store.Driver {
	case "dynamodb":
		cfg, err := b.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		store, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(cfg), b.cfg.Store.Table, b.cfg.Store.Retention)
		if err != nil {
			return nil, fmt.Errorf("app: dynamodb store: %w", err)
		}
		return store, nil

	default:
		store, err := repository.OpenSQLite(b.cfg.Store.Path, b.logger)
		if err != nil {
			return nil, fmt.Errorf("app: sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
}

// Close stops retention and releases the history store.
func (a *App) Close() error {
	var errs []error
	if a.Retention != nil {
		errs = append(errs, a.Retention.Stop())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
