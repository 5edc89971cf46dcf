package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"tax-assistant/internal/config"
	"tax-assistant/internal/domain"
	"tax-assistant/internal/integrations/gemini"
	"tax-assistant/internal/integrations/openai"
	"tax-assistant/internal/repository"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0", CORS: true},
		LLM: config.LLMConfig{
			Provider:    "openai",
			Model:       config.DefaultLLMModel,
			APIKey:      "gsk-test",
			Temperature: 1,
			MaxTokens:   1024,
			TopP:        1,
			Timeout:     time.Minute,
		},
		Store: config.StoreConfig{
			Driver:        "sqlite",
			Path:          filepath.Join(t.TempDir(), "history.db"),
			PruneSchedule: config.DefaultPruneSchedule,
		},
		History: config.HistoryConfig{UserID: domain.DefaultUserID, Limit: 10},
	}
}

func newBuilder(cfg *config.Config, awsErr error) *builder {
	return &builder{
		cfg:    cfg,
		logger: nil,
		loadAWSFn: func(context.Context) (aws.Config, error) {
			return aws.Config{Region: "us-east-1"}, awsErr
		},
	}
}

func TestBuild_SQLiteOpenAI(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.NotNil(t, a.Service)
	require.Nil(t, a.Retention)
	require.NoError(t, a.Service.ProbeStore(context.Background()))

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuild_RetentionForSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Retention = 30 * 24 * time.Hour
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Retention)
}

func TestBuild_NoKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	_, err := Build(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "no LLM API key")
}

func TestBuild_NilConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestLLMClient_Providers(t *testing.T) {
	cfg := testConfig(t)
	b := newBuilder(cfg, nil)
	llm, err := b.llmClient(context.Background())
	require.NoError(t, err)
	require.IsType(t, &openai.Client{}, llm)

	cfg.LLM.APIKey = ""
	cfg.LLM.APIKeyParam = "/taxchat/groq"
	llm, err = b.llmClient(context.Background())
	require.NoError(t, err)
	require.IsType(t, &openai.Client{}, llm)
	require.NotNil(t, b.params)

	cfg.LLM.Provider = "gemini"
	cfg.LLM.APIKey = "gemini-key"
	llm, err = b.llmClient(context.Background())
	require.NoError(t, err)
	require.IsType(t, &gemini.Client{}, llm)
}

func TestLLMClient_ParamStoreNeedsAWS(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	cfg.LLM.APIKeyParam = "/taxchat/groq"
	b := newBuilder(cfg, errors.New("no credentials"))
	_, err := b.llmClient(context.Background())
	require.ErrorContains(t, err, "load AWS config")
}

func TestHistoryStore_DynamoDB(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "dynamodb"
	cfg.Store.Table = "taxchat-history"
	b := newBuilder(cfg, nil)

	store, err := b.historyStore(context.Background(), &App{})
	require.NoError(t, err)
	require.IsType(t, &repository.DynamoStore{}, store)
}
