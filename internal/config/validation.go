package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for range and consistency errors.
// Returned errors wrap the package sentinel errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGoogleAI, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrInvalidProvider, c.Provider, ProviderGoogleAI, ProviderOpenAI)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}

	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: %g (must be 0..1)", ErrInvalidScoreThreshold, c.ScoreThreshold)
	}
	if c.MaxHistoryMessages < 1 || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("%w: %d (must be 1..%d)",
			ErrInvalidHistoryWindow, c.MaxHistoryMessages, MaxAllowedHistoryMessages)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: %g (must be >= 0)", ErrInvalidRateLimit, c.RateLimit)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}

	// CRM is optional; when enabled both pieces are required.
	if c.CRMBaseURL != "" {
		u, err := url.Parse(c.CRMBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidCRMBaseURL, c.CRMBaseURL)
		}
		if c.CRMToken == "" {
			return ErrMissingCRMToken
		}
	}

	return nil
}
