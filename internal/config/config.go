package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultUserAgent is sent when a request does not supply its own.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config is the root configuration for newsdesk.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    yaml:"server"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Extractor ExtractorConfig `mapstructure:"extractor" yaml:"extractor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	AI        AIConfig        `mapstructure:"ai"        yaml:"ai"`
	Lock      LockConfig      `mapstructure:"lock"      yaml:"lock"`
	Events    EventsConfig    `mapstructure:"events"    yaml:"events"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // browser, http
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	AcceptLanguage  string        `mapstructure:"accept_language"   yaml:"accept_language"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"   yaml:"default_timeout"`
	DetailTimeout   time.Duration `mapstructure:"detail_timeout"    yaml:"detail_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// BrowserConfig controls the headless browser used for rendering.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox"         yaml:"no_sandbox"`
	Stealth           bool          `mapstructure:"stealth"            yaml:"stealth"`
	Bin               string        `mapstructure:"bin"                yaml:"bin"`
	ViewportWidth     int           `mapstructure:"viewport_width"     yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"    yaml:"viewport_height"`
	NavigationRetries int           `mapstructure:"navigation_retries" yaml:"navigation_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"        yaml:"retry_delay"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout"   yaml:"selector_timeout"`
	ImageWaitCap      time.Duration `mapstructure:"image_wait_cap"     yaml:"image_wait_cap"`
	ScrollPause       time.Duration `mapstructure:"scroll_pause"       yaml:"scroll_pause"`
	MaxScrolls        int           `mapstructure:"max_scrolls"        yaml:"max_scrolls"`
}

// ExtractorConfig controls teaser and main-content extraction.
type ExtractorConfig struct {
	// Origin resolves root-relative image and link URLs.
	Origin string `mapstructure:"origin" yaml:"origin"`
	// Selectors lists article-card container selectors, most specific first.
	Selectors []string `mapstructure:"selectors" yaml:"selectors"`
	// OptimizerMarkers identify image-optimizer URLs in srcset/src.
	OptimizerMarkers []string `mapstructure:"optimizer_markers" yaml:"optimizer_markers"`
	MaxItems         int      `mapstructure:"max_items"         yaml:"max_items"`
	// DateFormat rewrites recognised teaser dates into this layout; empty keeps them verbatim.
	DateFormat string `mapstructure:"date_format" yaml:"date_format"`
}

// SchedulerConfig controls periodic ingestion.
type SchedulerConfig struct {
	Enabled                bool          `mapstructure:"enabled"                  yaml:"enabled"`
	SourceURL              string        `mapstructure:"source_url"               yaml:"source_url"`
	Interval               time.Duration `mapstructure:"interval"                 yaml:"interval"`
	MaxItems               int           `mapstructure:"max_items"                yaml:"max_items"`
	Timeout                time.Duration `mapstructure:"timeout"                  yaml:"timeout"`
	ManualMaxItems         int           `mapstructure:"manual_max_items"         yaml:"manual_max_items"`
	ManualTimeout          time.Duration `mapstructure:"manual_timeout"           yaml:"manual_timeout"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	RunOnStart             bool          `mapstructure:"run_on_start"             yaml:"run_on_start"`
	UseBrowser             bool          `mapstructure:"use_browser"              yaml:"use_browser"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	Type                string        `mapstructure:"type"                 yaml:"type"` // memory, mongodb, postgres
	URI                 string        `mapstructure:"uri"                  yaml:"uri"`
	Database            string        `mapstructure:"database"             yaml:"database"`
	ArticlesCollection  string        `mapstructure:"articles_collection"  yaml:"articles_collection"`
	ProcessedCollection string        `mapstructure:"processed_collection" yaml:"processed_collection"`
	Timeout             time.Duration `mapstructure:"timeout"              yaml:"timeout"`
}

// AIConfig controls LLM integration.
type AIConfig struct {
	Enabled           bool          `mapstructure:"enabled"             yaml:"enabled"`
	Provider          string        `mapstructure:"provider"            yaml:"provider"` // openai, ollama, custom
	Model             string        `mapstructure:"model"               yaml:"model"`
	Endpoint          string        `mapstructure:"endpoint"            yaml:"endpoint"`
	APIKey            string        `mapstructure:"api_key"             yaml:"api_key"`
	MaxTokens         int           `mapstructure:"max_tokens"          yaml:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"         yaml:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	MaxInputChars     int           `mapstructure:"max_input_chars"     yaml:"max_input_chars"`
}

// LockConfig controls the optional cross-process ingestion lock.
type LockConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Addr     string        `mapstructure:"addr"     yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db"       yaml:"db"`
	Key      string        `mapstructure:"key"      yaml:"key"`
	TTL      time.Duration `mapstructure:"ttl"      yaml:"ttl"`
}

// EventsConfig controls publishing of ingestion events.
type EventsConfig struct {
	Enabled       bool   `mapstructure:"enabled"        yaml:"enabled"`
	URL           string `mapstructure:"url"            yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultSelectors is the ordered article-card selector list.
func DefaultSelectors() []string {
	return []string{
		"div.article-item",
		"div.news-item",
		"div.post-item",
		"[class*='ArticleCard']",
		"[class*='article-card']",
		"article",
		".card",
		".item",
		".post",
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    180 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Fetcher: FetcherConfig{
			Type:            "browser",
			UserAgent:       DefaultUserAgent,
			AcceptLanguage:  "vi-VN,vi;q=0.9,en;q=0.8",
			DefaultTimeout:  30 * time.Second,
			DetailTimeout:   45 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NoSandbox:         true,
			Stealth:           true,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationRetries: 3,
			RetryDelay:        2 * time.Second,
			SelectorTimeout:   10 * time.Second,
			ImageWaitCap:      15 * time.Second,
			ScrollPause:       time.Second,
			MaxScrolls:        5,
		},
		Extractor: ExtractorConfig{
			Origin:           "https://coin68.com",
			Selectors:        DefaultSelectors(),
			OptimizerMarkers: []string{"/_next/image"},
			MaxItems:         50,
		},
		Scheduler: SchedulerConfig{
			Enabled:                true,
			SourceURL:              "https://coin68.com/article/",
			Interval:               10 * time.Minute,
			MaxItems:               30,
			Timeout:                45 * time.Second,
			ManualMaxItems:         20,
			ManualTimeout:          30 * time.Second,
			MaxConsecutiveFailures: 5,
			UseBrowser:             true,
		},
		Storage: StorageConfig{
			Type:                "memory",
			Database:            "newsdesk",
			ArticlesCollection:  "articles",
			ProcessedCollection: "processed_articles",
			Timeout:             10 * time.Second,
		},
		AI: AIConfig{
			Enabled:           false,
			Provider:          "openai",
			Model:             "gpt-4",
			Endpoint:          "https://api.openai.com/v1",
			MaxTokens:         4000,
			Temperature:       0.3,
			Timeout:           120 * time.Second,
			RequestsPerSecond: 1,
			MaxInputChars:     12000,
		},
		Lock: LockConfig{
			Addr: "localhost:6379",
			Key:  "newsdesk:ingest",
			TTL:  2 * time.Minute,
		},
		Events: EventsConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "newsdesk",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
