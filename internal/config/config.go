package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Crawler  CrawlerConfig  `mapstructure:"crawler" yaml:"crawler"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`
}

// LoggerConfig controls the zap logger and its optional rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig points at the Postgres instance backing the locator store.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// BrowserConfig controls the chromedp allocator for the crawl page.
type BrowserConfig struct {
	Headless     bool   `mapstructure:"headless" yaml:"headless"`
	NoSandbox    bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth  int    `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" yaml:"window_height"`
}

// CrawlerConfig bounds the traversal and its waits.
type CrawlerConfig struct {
	MaxDepth          int           `mapstructure:"max_depth" yaml:"max_depth"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ClickTimeout      time.Duration `mapstructure:"click_timeout" yaml:"click_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	LoginWait         time.Duration `mapstructure:"login_wait" yaml:"login_wait"`
	// NavPerSecond rate-limits page navigations. Zero disables the limiter.
	NavPerSecond      float64 `mapstructure:"nav_per_second" yaml:"nav_per_second"`
	IncludeSubdomains bool    `mapstructure:"include_subdomains" yaml:"include_subdomains"`
	SeedSitemaps      bool    `mapstructure:"seed_sitemaps" yaml:"seed_sitemaps"`
}

// AuthConfig carries the single credential pair used by the form-login
// heuristic. Anything stronger is out of scope.
type AuthConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// APIConfig configures both sides of the HTTP collaborator: the address the
// serve command binds, and the base URL the crawl command talks to when it
// runs against a remote store instead of Postgres directly.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
}

// SetDefaults applies default values for anything the config file and
// environment left unset.
func (c *Config) SetDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if c.Logger.ServiceName == "" {
		c.Logger.ServiceName = "uimap"
	}
	if c.Logger.MaxSize <= 0 {
		c.Logger.MaxSize = 50
	}
	if c.Logger.MaxBackups <= 0 {
		c.Logger.MaxBackups = 3
	}
	if c.Logger.MaxAge <= 0 {
		c.Logger.MaxAge = 14
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 4
	}
	if c.Browser.WindowWidth <= 0 {
		c.Browser.WindowWidth = 1366
	}
	if c.Browser.WindowHeight <= 0 {
		c.Browser.WindowHeight = 900
	}
	if c.Crawler.MaxDepth <= 0 {
		c.Crawler.MaxDepth = 15
	}
	if c.Crawler.NavigationTimeout <= 0 {
		c.Crawler.NavigationTimeout = 15 * time.Second
	}
	if c.Crawler.ClickTimeout <= 0 {
		c.Crawler.ClickTimeout = 2 * time.Second
	}
	if c.Crawler.PostLoadWait <= 0 {
		c.Crawler.PostLoadWait = 500 * time.Millisecond
	}
	if c.Crawler.LoginWait <= 0 {
		c.Crawler.LoginWait = 2 * time.Second
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8000"
	}
}

// Load reads configuration from the given file (or the default search path
// when cfgFile is empty), layers UIMAP_* environment variables on top, and
// returns the resolved Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".uimap"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("UIMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so every
	// key is registered with its default here.
	registerDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars take over.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

func registerDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "uimap")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("crawler.max_depth", 15)
	v.SetDefault("crawler.navigation_timeout", 15*time.Second)
	v.SetDefault("crawler.click_timeout", 2*time.Second)
	v.SetDefault("crawler.post_load_wait", 500*time.Millisecond)
	v.SetDefault("crawler.login_wait", 2*time.Second)
	v.SetDefault("crawler.nav_per_second", 0.0)
	v.SetDefault("crawler.include_subdomains", false)
	v.SetDefault("crawler.seed_sitemaps", false)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("api.listen_addr", ":8000")
	v.SetDefault("api.base_url", "")
}
