package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docqa/backend/internal/errs"
)

func validConfig() *Config {
	return &Config{
		Chunking:  ChunkingConfig{Size: 1000, Overlap: 200},
		Retrieval: RetrievalConfig{TopK: 5, CandidateK: 20, SemanticWeight: 0.5},
		Session:   SessionConfig{HistoryWindow: 6},
		Vector:    VectorConfig{Provider: "memory"},
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }, "chunking.size"},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }, "chunking.overlap"},
		{"overlap >= size", func(c *Config) { c.Chunking.Overlap = 1000 }, "chunking.overlap"},
		{"zero topK", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.topK"},
		{"candidateK below topK", func(c *Config) { c.Retrieval.CandidateK = 3 }, "retrieval.candidateK"},
		{"weight above one", func(c *Config) { c.Retrieval.SemanticWeight = 1.5 }, "retrieval.semanticWeight"},
		{"negative weight", func(c *Config) { c.Retrieval.SemanticWeight = -0.1 }, "retrieval.semanticWeight"},
		{"zero history window", func(c *Config) { c.Session.HistoryWindow = 0 }, "session.historyWindow"},
		{"unknown vector provider", func(c *Config) { c.Vector.Provider = "pinecone" }, "vector.provider"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			assert.Error(t, err)

			var cfgErr *errs.ConfigError
			if assert.ErrorAs(t, err, &cfgErr) {
				assert.Equal(t, tc.field, cfgErr.Field)
			}
		})
	}
}
