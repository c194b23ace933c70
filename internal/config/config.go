package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Listing             ListingConfig       `yaml:"listing"`
	Rod                 RodConfig           `yaml:"rod"`
	HTTP                HttpConfig          `yaml:"http"`
	Backoff             BackoffConfig       `yaml:"backoff"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	Pagination          PaginationConfig    `yaml:"pagination"`
	Filter              FilterConfig        `yaml:"filter"`
	Detail              DetailConfig        `yaml:"detail"`
	Telegram            TelegramConfig      `yaml:"telegram"`
	Notify              NotifyConfig        `yaml:"notify"`
	Storage             StorageConfig       `yaml:"storage"`
	Scheduler           SchedulerConfig     `yaml:"scheduler"`
	Observability       ObservabilityConfig `yaml:"observability"`
	Debug               DebugConfig         `yaml:"debug"`
	SelectorsFile       string              `yaml:"selectors_file"`

	// DryRun: извлечь и отфильтровать лоты, ничего не отправлять и не сохранять.
	DryRun bool `yaml:"dry_run"`
}

type ListingConfig struct {
	BaseURL   string `yaml:"base_url"`
	PageParam string `yaml:"page_param"`
}

type RodConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Headless     bool   `yaml:"headless"`
	ChromePath   string `yaml:"chrome_path"`
	PageTimeoutS int    `yaml:"page_timeout_s"`
}

type HttpConfig struct {
	UserAgent        string `yaml:"user_agent"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS   int    `yaml:"total_timeout_ms"`
	MaxRetries       int    `yaml:"max_retries"`
	AcceptLanguage   string `yaml:"accept_language"`
	RespectRobots    bool   `yaml:"respect_robots"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type PaginationConfig struct {
	MaxPages     int `yaml:"max_pages"`
	WaitTimeoutS int `yaml:"wait_timeout_s"`
}

type FilterConfig struct {
	PlatePrefix string `yaml:"plate_prefix"`
}

type DetailConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TelegramConfig struct {
	Token      string `yaml:"token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type NotifyConfig struct {
	Pacing            string `yaml:"pacing"`
	MessageDelayMS    int    `yaml:"message_delay_ms"`
	RatePerMinute     int    `yaml:"rate_per_minute"`
	Burst             int    `yaml:"burst"`
	DownloadAttempts  int    `yaml:"download_attempts"`
	DownloadBackoffMS int    `yaml:"download_backoff_ms"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	Path             string `yaml:"path"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
	PersistEach      bool   `yaml:"persist_each"`
}

type SchedulerConfig struct {
	Mode      string `yaml:"mode"`
	IntervalS int    `yaml:"interval_s"`
}

type ObservabilityConfig struct {
	LogPath    string `yaml:"log_path"`
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type DebugConfig struct {
	DumpDir string `yaml:"dump_dir"`
}

// Default возвращает рабочую конфигурацию для листинга JBA (мотоциклы, плата AD).
func Default() *Config {
	return &Config{
		Listing: ListingConfig{
			BaseURL:   "https://www.jba.co.id/id/lelang-motor/search?vehicle_type=bike&keyword=",
			PageParam: "page",
		},
		Rod: RodConfig{
			Enabled:      false,
			Headless:     true,
			PageTimeoutS: 60,
		},
		HTTP: HttpConfig{
			UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ConnectTimeoutMS: 10000,
			TotalTimeoutMS:   20000,
			MaxRetries:       2,
			AcceptLanguage:   "id-ID,id;q=0.9,en;q=0.8",
		},
		Backoff: BackoffConfig{
			MinMS:     500,
			MaxMS:     4000,
			JitterPct: 20,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 1,
			RPM:                  30,
		},
		RobotsCacheTTLHours: 12,
		Pagination: PaginationConfig{
			MaxPages:     50,
			WaitTimeoutS: 15,
		},
		Filter: FilterConfig{
			PlatePrefix: "AD",
		},
		Detail: DetailConfig{
			Enabled: true,
		},
		Telegram: TelegramConfig{
			APIBaseURL: "https://api.telegram.org",
			TimeoutMS:  20000,
		},
		Notify: NotifyConfig{
			Pacing:            "fixed",
			MessageDelayMS:    1500,
			RatePerMinute:     20,
			Burst:             1,
			DownloadAttempts:  3,
			DownloadBackoffMS: 1000,
		},
		Storage: StorageConfig{
			Driver:           "file",
			Path:             "seen_api.json",
			CommandTimeoutMS: 5000,
			PersistEach:      true,
		},
		Scheduler: SchedulerConfig{
			Mode: "oneshot",
		},
		Observability: ObservabilityConfig{
			LogPath:    "logs/lot-watcher.log",
			LogLevel:   "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.Listing.BaseURL == "" {
		return fmt.Errorf("listing.base_url is required")
	}
	if u, err := url.Parse(c.Listing.BaseURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("listing.base_url must be an absolute URL: %q", c.Listing.BaseURL)
	}
	if c.Listing.PageParam == "" {
		return fmt.Errorf("listing.page_param is required")
	}
	if c.Filter.PlatePrefix == "" {
		return fmt.Errorf("filter.plate_prefix is required")
	}
	if c.Pagination.MaxPages <= 0 {
		return fmt.Errorf("pagination.max_pages must be > 0")
	}
	if c.Pagination.WaitTimeoutS <= 0 {
		return fmt.Errorf("pagination.wait_timeout_s must be > 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.RobotsCacheTTLHours <= 0 {
		return fmt.Errorf("robots_cache_ttl_hours must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Rod.Enabled && c.Rod.PageTimeoutS <= 0 {
		return fmt.Errorf("rod.page_timeout_s must be > 0")
	}
	if !c.DryRun {
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required (TELEGRAM_TOKEN)")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required (TELEGRAM_CHAT_ID)")
		}
	}
	if c.Telegram.APIBaseURL == "" {
		return fmt.Errorf("telegram.api_base_url is required")
	}
	if c.Telegram.TimeoutMS <= 0 {
		return fmt.Errorf("telegram.timeout_ms must be > 0")
	}
	switch c.Notify.Pacing {
	case "fixed":
		if c.Notify.MessageDelayMS < 0 {
			return fmt.Errorf("notify.message_delay_ms must be >= 0")
		}
	case "token_bucket":
		if c.Notify.RatePerMinute <= 0 {
			return fmt.Errorf("notify.rate_per_minute must be > 0 when pacing is 'token_bucket'")
		}
		if c.Notify.Burst <= 0 {
			return fmt.Errorf("notify.burst must be > 0 when pacing is 'token_bucket'")
		}
	default:
		return fmt.Errorf("notify.pacing must be 'fixed' or 'token_bucket'")
	}
	if c.Notify.DownloadAttempts <= 0 {
		return fmt.Errorf("notify.download_attempts must be > 0")
	}
	if c.Notify.DownloadBackoffMS < 0 {
		return fmt.Errorf("notify.download_backoff_ms must be >= 0")
	}
	switch c.Storage.Driver {
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when driver is 'file'")
		}
	case "mssql", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when driver is '%s'", c.Storage.Driver)
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
	default:
		return fmt.Errorf("storage.driver must be 'file', 'mssql' or 'postgres'")
	}
	if c.Scheduler.Mode != "oneshot" && c.Scheduler.Mode != "interval" {
		return fmt.Errorf("scheduler.mode must be 'oneshot' or 'interval'")
	}
	if c.Scheduler.Mode == "interval" && c.Scheduler.IntervalS <= 0 {
		return fmt.Errorf("scheduler.interval_s must be > 0 when mode is 'interval'")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetPageWaitTimeout() time.Duration {
	return time.Duration(c.Pagination.WaitTimeoutS) * time.Second
}

func (c *Config) GetTelegramTimeout() time.Duration {
	return time.Duration(c.Telegram.TimeoutMS) * time.Millisecond
}

func (c *Config) GetMessageDelay() time.Duration {
	return time.Duration(c.Notify.MessageDelayMS) * time.Millisecond
}

func (c *Config) GetDownloadBackoff() time.Duration {
	return time.Duration(c.Notify.DownloadBackoffMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalS) * time.Second
}
