package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"tax-assistant/internal/domain"
)

// Answer outcomes reported to the Recorder.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeUpstream    = "upstream_error"
	OutcomeRateLimited = "rate_limited"
)

const defaultHistoryLimit = 10

// MaxHistoryLimit caps how many exchanges one History call returns.
const MaxHistoryLimit = 100

type LLMClient interface {
	Chat(ctx context.Context, in domain.ChatRequest) (string, error)
}

type HistoryStore interface {
	SaveExchange(ctx context.Context, ex domain.Exchange) error
	RecentExchanges(ctx context.Context, userID string, limit int) ([]domain.Exchange, error)
	Ping(ctx context.Context) error
}

// Recorder receives service measurements. A nil Recorder is allowed.
type Recorder interface {
	ObserveAnswer(outcome string)
	ObserveLLMLatency(d time.Duration)
	HistoryWriteFailed()
}

// Settings are the completion parameters and history defaults.
type Settings struct {
	Model        string
	Temperature  float64
	TopP         float64
	MaxTokens    int
	UserID       string
	HistoryLimit int
	// Timeout bounds each completion call; zero leaves it to the caller.
	Timeout time.Duration
}

type ChatService struct {
	llm      LLMClient
	store    HistoryStore
	settings Settings
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

type ServiceOption func(*ChatService)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *ChatService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRecorder(r Recorder) ServiceOption {
	return func(s *ChatService) {
		s.recorder = r
	}
}

func NewChatService(llm LLMClient, store HistoryStore, settings Settings, opts ...ServiceOption) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if strings.TrimSpace(settings.Model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if strings.TrimSpace(settings.UserID) == "" {
		settings.UserID = domain.DefaultUserID
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = defaultHistoryLimit
	}
	s := &ChatService{
		llm:      llm,
		store:    store,
		settings: settings,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat_service")
	return s, nil
}

// Answer sends prompt to the model with the audience-specific system prompt
// and records the exchange. A failed history write does not fail the answer.
func (s *ChatService) Answer(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		s.observeAnswer(OutcomeInvalid)
		return "", newError(ErrorInvalidInput, "empty_prompt", nil)
	}

	audience := audienceFor(prompt)
	s.logger.InfoContext(ctx, "received prompt", "audience", audience, "prompt_len", len(prompt))

	answer, err := s.complete(ctx, systemPromptFor(audience), prompt)
	if err != nil {
		uerr := llmError("llm", err)
		if uerr.Code == ErrorRateLimited {
			s.observeAnswer(OutcomeRateLimited)
		} else {
			s.observeAnswer(OutcomeUpstream)
		}
		s.logger.ErrorContext(ctx, "llm call failed", "err", err)
		return "", uerr
	}

	ex := domain.Exchange{
		UserID:    s.settings.UserID,
		Prompt:    prompt,
		Response:  answer,
		Timestamp: s.now(),
	}
	if err := s.store.SaveExchange(ctx, ex); err != nil {
		s.logger.ErrorContext(ctx, "history write failed (non-fatal)", "err", err)
		if s.recorder != nil {
			s.recorder.HistoryWriteFailed()
		}
	}

	s.observeAnswer(OutcomeSuccess)
	return answer, nil
}

// History returns the most recent exchanges for userID, newest first. Empty
// userID and non-positive limit fall back to the configured defaults; larger
// limits are capped at MaxHistoryLimit.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]domain.Exchange, error) {
	if strings.TrimSpace(userID) == "" {
		userID = s.settings.UserID
	}
	if limit <= 0 {
		limit = s.settings.HistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	exs, err := s.store.RecentExchanges(ctx, userID, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "history_read_error", err)
	}
	return exs, nil
}

// ProbeLLM runs a trivial completion to check the provider is reachable.
func (s *ChatService) ProbeLLM(ctx context.Context) (string, error) {
	answer, err := s.complete(ctx, probeSystemPrompt, probeUserPrompt)
	if err != nil {
		return "", llmError("llm_probe", err)
	}
	return answer, nil
}

// ProbeStore checks the history store connection.
func (s *ChatService) ProbeStore(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return newError(ErrorInternal, "store_ping_error", err)
	}
	return nil
}

func (s *ChatService) complete(ctx context.Context, system, user string) (string, error) {
	temperature := s.settings.Temperature
	topP := s.settings.TopP
	req := domain.ChatRequest{
		Model:       s.settings.Model,
		Messages:    buildMessages(system, user),
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   s.settings.MaxTokens,
	}

	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := s.llm.Chat(ctx, req)
	if s.recorder != nil {
		s.recorder.ObserveLLMLatency(time.Since(start))
	}
	return answer, err
}

func (s *ChatService) observeAnswer(outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveAnswer(outcome)
	}
}
