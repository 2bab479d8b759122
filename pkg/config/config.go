package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/docqa/backend/internal/errs"
)

type Config struct {
	Server    ServerConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	LLM       LLMConfig
	Vector    VectorConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Session   SessionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type RetrievalConfig struct {
	TopK           int
	CandidateK     int
	SemanticWeight float64
}

type LLMConfig struct {
	APIKey               string
	BaseURL              string
	Model                string
	EmbeddingModel       string
	Temperature          float32
	MaxTokens            int
	CompletionTimeoutSec int
	EmbeddingTimeoutSec  int
}

type VectorConfig struct {
	Provider   string
	Endpoint   string
	APIKey     string
	Collection string
	Dim        int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type SessionConfig struct {
	HistoryWindow  int
	IdleTTLMinutes int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/docqa")

	viper.SetEnvPrefix("DOCQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects invalid chunking and retrieval settings before any
// document is processed.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return &errs.ConfigError{Field: "chunking.size", Reason: "must be a positive integer"}
	}
	if c.Chunking.Overlap < 0 {
		return &errs.ConfigError{Field: "chunking.overlap", Reason: "must not be negative"}
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return &errs.ConfigError{Field: "chunking.overlap", Reason: "must be smaller than chunking.size"}
	}
	if c.Retrieval.TopK <= 0 {
		return &errs.ConfigError{Field: "retrieval.topK", Reason: "must be a positive integer"}
	}
	if c.Retrieval.CandidateK < c.Retrieval.TopK {
		return &errs.ConfigError{Field: "retrieval.candidateK", Reason: "must be at least retrieval.topK"}
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.SemanticWeight > 1 {
		return &errs.ConfigError{Field: "retrieval.semanticWeight", Reason: "must be between 0 and 1"}
	}
	if c.Session.HistoryWindow <= 0 {
		return &errs.ConfigError{Field: "session.historyWindow", Reason: "must be a positive integer"}
	}
	if c.Vector.Provider != "memory" && c.Vector.Provider != "milvus" {
		return &errs.ConfigError{Field: "vector.provider", Reason: `must be "memory" or "milvus"`}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 33554432)

	viper.SetDefault("chunking.size", 1000)
	viper.SetDefault("chunking.overlap", 200)

	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.candidateK", 20)
	viper.SetDefault("retrieval.semanticWeight", 0.5)

	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.completionTimeoutSec", 60)
	viper.SetDefault("llm.embeddingTimeoutSec", 30)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")

	viper.SetDefault("vector.provider", "memory")
	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collection", "docqa_chunks")
	viper.SetDefault("vector.dim", 1536)

	viper.SetDefault("sqlite.path", "./data/docqa.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("session.historyWindow", 6)
	viper.SetDefault("session.idleTTLMinutes", 0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
