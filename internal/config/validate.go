package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.DefaultTimeout <= 0 {
		return fmt.Errorf("fetcher.default_timeout must be > 0")
	}
	if cfg.Fetcher.DetailTimeout <= 0 {
		return fmt.Errorf("fetcher.detail_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Browser.NavigationRetries < 1 {
		return fmt.Errorf("browser.navigation_retries must be >= 1, got %d", cfg.Browser.NavigationRetries)
	}
	if cfg.Browser.ImageWaitCap <= 0 {
		return fmt.Errorf("browser.image_wait_cap must be > 0")
	}
	if cfg.Browser.MaxScrolls < 1 || cfg.Browser.MaxScrolls > 20 {
		return fmt.Errorf("browser.max_scrolls must be 1-20, got %d", cfg.Browser.MaxScrolls)
	}

	if len(cfg.Extractor.Selectors) == 0 {
		return fmt.Errorf("extractor.selectors must not be empty")
	}
	if cfg.Extractor.Origin != "" {
		if err := ValidateURL(cfg.Extractor.Origin); err != nil {
			return fmt.Errorf("extractor.origin: %w", err)
		}
	}

	if cfg.Scheduler.Enabled {
		if err := ValidateURL(cfg.Scheduler.SourceURL); err != nil {
			return fmt.Errorf("scheduler.source_url: %w", err)
		}
		if cfg.Scheduler.Interval < time.Second {
			return fmt.Errorf("scheduler.interval must be >= 1s, got %s", cfg.Scheduler.Interval)
		}
	}
	if cfg.Scheduler.MaxItems < 1 || cfg.Scheduler.ManualMaxItems < 1 {
		return fmt.Errorf("scheduler item caps must be >= 1")
	}
	if cfg.Scheduler.Timeout <= 0 || cfg.Scheduler.ManualTimeout <= 0 {
		return fmt.Errorf("scheduler timeouts must be > 0")
	}
	if cfg.Scheduler.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("scheduler.max_consecutive_failures must be >= 0")
	}

	validStorageTypes := map[string]bool{
		"memory": true, "mongodb": true, "postgres": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: memory, mongodb, postgres)", cfg.Storage.Type)
	}
	if cfg.Storage.Type != "memory" && cfg.Storage.URI == "" {
		return fmt.Errorf("storage.uri is required for storage.type %q", cfg.Storage.Type)
	}

	if cfg.AI.Enabled {
		validProviders := map[string]bool{"openai": true, "ollama": true, "custom": true}
		if !validProviders[cfg.AI.Provider] {
			return fmt.Errorf("ai.provider must be openai/ollama/custom, got %q", cfg.AI.Provider)
		}
		if cfg.AI.Provider == "openai" && cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required for the openai provider")
		}
		if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
			return fmt.Errorf("ai.temperature must be 0-2, got %v", cfg.AI.Temperature)
		}
	}

	if cfg.Lock.Enabled && cfg.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
