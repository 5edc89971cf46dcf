package config

import (
	"time"

	"github.com/spf13/viper"

	"tax-assistant/internal/domain"
)

const (
	DefaultServerAddr    = ":5001"
	DefaultLLMProvider   = "openai"
	DefaultLLMModel      = "llama3-70b-8192"
	DefaultTemperature   = 1.0
	DefaultMaxTokens     = 1024
	DefaultTopP          = 1.0
	DefaultLLMTimeout    = 60 * time.Second
	DefaultStoreDriver   = "sqlite"
	DefaultStorePath     = "data/chat_history.db"
	DefaultPruneSchedule = "0 3 * * *"
	DefaultHistoryLimit  = 10
	DefaultServiceURL    = "http://127.0.0.1:5001"
	DefaultClientTimeout = 90 * time.Second
	DefaultLogLevel      = "info"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.cors", true)

	// An empty base URL selects the provider's own endpoint (Groq for openai).
	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_key_param", "")
	v.SetDefault("llm.temperature", DefaultTemperature)
	v.SetDefault("llm.max_tokens", DefaultMaxTokens)
	v.SetDefault("llm.top_p", DefaultTopP)
	v.SetDefault("llm.timeout", DefaultLLMTimeout)

	v.SetDefault("store.driver", DefaultStoreDriver)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("store.table", "")
	v.SetDefault("store.retention", time.Duration(0))
	v.SetDefault("store.prune_schedule", DefaultPruneSchedule)

	v.SetDefault("history.user_id", domain.DefaultUserID)
	v.SetDefault("history.limit", DefaultHistoryLimit)

	v.SetDefault("client.service_url", DefaultServiceURL)
	v.SetDefault("client.timeout", DefaultClientTimeout)

	v.SetDefault("log.level", DefaultLogLevel)
}
