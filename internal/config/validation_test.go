package config

import (
	"errors"
	"testing"
)

// valid returns a configuration that passes Validate.
func valid() *Config {
	return &Config{
		Provider:           ProviderGoogleAI,
		ModelName:          "gemini-2.5-flash",
		EmbedderModel:      DefaultEmbedderModel,
		TopK:               DefaultTopK,
		ScoreThreshold:     DefaultScoreThreshold,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "arealbot",
		PostgresDBName:     "arealbot",
		PostgresSSLMode:    "disable",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"openai provider accepted", func(c *Config) { c.Provider = ProviderOpenAI; c.ModelName = "gpt-4o" }, nil},
		{"unknown provider", func(c *Config) { c.Provider = "cohere" }, ErrInvalidProvider},
		{"empty model name", func(c *Config) { c.ModelName = " " }, ErrInvalidModelName},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"zero top-k", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"excessive top-k", func(c *Config) { c.TopK = MaxTopK + 1 }, ErrInvalidTopK},
		{"negative threshold", func(c *Config) { c.ScoreThreshold = -0.1 }, ErrInvalidScoreThreshold},
		{"threshold above one", func(c *Config) { c.ScoreThreshold = 1.5 }, ErrInvalidScoreThreshold},
		{"zero history window", func(c *Config) { c.MaxHistoryMessages = 0 }, ErrInvalidHistoryWindow},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }, ErrInvalidRateLimit},
		{"zero rate limit disables limiting", func(c *Config) { c.RateLimit = 0 }, nil},
		{"empty postgres host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"postgres port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"crm url without token", func(c *Config) { c.CRMBaseURL = "https://crm.example.com" }, ErrMissingCRMToken},
		{"malformed crm url", func(c *Config) { c.CRMBaseURL = "://bad"; c.CRMToken = "t" }, ErrInvalidCRMBaseURL},
		{"crm fully configured", func(c *Config) { c.CRMBaseURL = "https://crm.example.com"; c.CRMToken = "t" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var c *Config
	if err := c.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}
