package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NEWSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsdesk")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsdesk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper. Every key must be
// registered for AutomaticEnv to pick up its environment override.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.accept_language", cfg.Fetcher.AcceptLanguage)
	v.SetDefault("fetcher.default_timeout", cfg.Fetcher.DefaultTimeout)
	v.SetDefault("fetcher.detail_timeout", cfg.Fetcher.DetailTimeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.viewport_width", cfg.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", cfg.Browser.ViewportHeight)
	v.SetDefault("browser.navigation_retries", cfg.Browser.NavigationRetries)
	v.SetDefault("browser.retry_delay", cfg.Browser.RetryDelay)
	v.SetDefault("browser.selector_timeout", cfg.Browser.SelectorTimeout)
	v.SetDefault("browser.image_wait_cap", cfg.Browser.ImageWaitCap)
	v.SetDefault("browser.scroll_pause", cfg.Browser.ScrollPause)
	v.SetDefault("browser.max_scrolls", cfg.Browser.MaxScrolls)

	v.SetDefault("extractor.origin", cfg.Extractor.Origin)
	v.SetDefault("extractor.selectors", cfg.Extractor.Selectors)
	v.SetDefault("extractor.optimizer_markers", cfg.Extractor.OptimizerMarkers)
	v.SetDefault("extractor.max_items", cfg.Extractor.MaxItems)
	v.SetDefault("extractor.date_format", cfg.Extractor.DateFormat)

	v.SetDefault("scheduler.enabled", cfg.Scheduler.Enabled)
	v.SetDefault("scheduler.source_url", cfg.Scheduler.SourceURL)
	v.SetDefault("scheduler.interval", cfg.Scheduler.Interval)
	v.SetDefault("scheduler.max_items", cfg.Scheduler.MaxItems)
	v.SetDefault("scheduler.timeout", cfg.Scheduler.Timeout)
	v.SetDefault("scheduler.manual_max_items", cfg.Scheduler.ManualMaxItems)
	v.SetDefault("scheduler.manual_timeout", cfg.Scheduler.ManualTimeout)
	v.SetDefault("scheduler.max_consecutive_failures", cfg.Scheduler.MaxConsecutiveFailures)
	v.SetDefault("scheduler.run_on_start", cfg.Scheduler.RunOnStart)
	v.SetDefault("scheduler.use_browser", cfg.Scheduler.UseBrowser)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.uri", cfg.Storage.URI)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.articles_collection", cfg.Storage.ArticlesCollection)
	v.SetDefault("storage.processed_collection", cfg.Storage.ProcessedCollection)
	v.SetDefault("storage.timeout", cfg.Storage.Timeout)

	v.SetDefault("ai.enabled", cfg.AI.Enabled)
	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.endpoint", cfg.AI.Endpoint)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)
	v.SetDefault("ai.temperature", cfg.AI.Temperature)
	v.SetDefault("ai.timeout", cfg.AI.Timeout)
	v.SetDefault("ai.requests_per_second", cfg.AI.RequestsPerSecond)
	v.SetDefault("ai.max_input_chars", cfg.AI.MaxInputChars)

	v.SetDefault("lock.enabled", cfg.Lock.Enabled)
	v.SetDefault("lock.addr", cfg.Lock.Addr)
	v.SetDefault("lock.password", cfg.Lock.Password)
	v.SetDefault("lock.db", cfg.Lock.DB)
	v.SetDefault("lock.key", cfg.Lock.Key)
	v.SetDefault("lock.ttl", cfg.Lock.TTL)

	v.SetDefault("events.enabled", cfg.Events.Enabled)
	v.SetDefault("events.url", cfg.Events.URL)
	v.SetDefault("events.subject_prefix", cfg.Events.SubjectPrefix)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
