package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validatePositive(field string, value int) error {
	if value <= 0 {
		return &ValidationError{Field: field, Message: "must be positive"}
	}
	return nil
}

func validateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute URL"}
	}
	return nil
}

func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "warning", "error", "fatal":
		return nil
	default:
		return &ValidationError{Field: "logger.level", Message: "must be one of: debug, info, warn, error, fatal"}
	}
}

// Validate checks the whole configuration and returns the first problem.
func (c *Config) Validate() error {
	checks := []func() error{
		func() error { return validateLogLevel(c.Logger.Level) },
		func() error { return validatePositive("pipeline.limit", c.Pipeline.Limit) },
		func() error { return validatePositive("fetcher.max_attempts", c.Fetcher.MaxAttempts) },
		func() error { return validatePositive("extraction.min_body_length", c.Extraction.MinBodyLength) },
		func() error { return validatePositive("extraction.max_depth", c.Extraction.MaxDepth) },
		func() error { return validatePositive("validation.leading_window", c.Validation.LeadingWindow) },
		func() error { return validatePositive("translation.chunk_size", c.Translation.ChunkSize) },
		c.validateTranslation,
		func() error { return validateURL("catalog.search_url", c.Catalog.SearchURL) },
		func() error { return validateURL("catalog.instruments_url", c.Catalog.InstrumentsURL) },
		c.validatePublisher,
		c.validateRedis,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateTranslation() error {
	t := c.Translation
	if t.MaxChunks < 0 {
		return &ValidationError{Field: "translation.max_chunks", Message: "must not be negative"}
	}
	if t.Threshold <= 0 || t.Threshold >= 1 {
		return &ValidationError{Field: "translation.threshold", Message: "must be between 0 and 1"}
	}
	if !t.Enabled {
		return nil
	}
	if t.SourceLang == "" || t.TargetLang == "" {
		return &ValidationError{Field: "translation", Message: "source_lang and target_lang are required"}
	}
	return validateURL("translation.endpoint", t.Endpoint)
}

func (c *Config) validatePublisher() error {
	if c.Publisher.OutputDir == "" {
		return &ValidationError{Field: "publisher.output_dir", Message: "is required"}
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Enabled && c.Redis.Address == "" {
		return &ValidationError{Field: "redis.address", Message: "is required when redis is enabled"}
	}
	return nil
}
