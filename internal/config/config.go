package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Output  OutputConfig  `mapstructure:"output"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Catalog CatalogConfig `mapstructure:"catalog"`
}

type RunConfig struct {
	Workers    int   `mapstructure:"workers"`     // 0 selects 8 per CPU
	QueueDepth int   `mapstructure:"queue_depth"` // 0 selects workers*2
	Budget     int64 `mapstructure:"budget"`      // 0 is unlimited
	Continue   bool  `mapstructure:"continue"`
}

type FilterConfig struct {
	Keywords     []string `mapstructure:"keywords"`
	MinImageSize int      `mapstructure:"min_image_size"`
}

type FetchConfig struct {
	UserAgent            string        `mapstructure:"user_agent"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxBodyBytes         int64         `mapstructure:"max_body_bytes"`
	Formats              []string      `mapstructure:"formats"`
	DisallowedDirectives []string      `mapstructure:"disallowed_directives"`
}

type OutputConfig struct {
	Path      string `mapstructure:"path"`
	FlushRows int    `mapstructure:"flush_rows"`
}

type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

type CatalogConfig struct {
	Output    string `mapstructure:"output"`
	Title     string `mapstructure:"title"`
	MaxImages int    `mapstructure:"max_images"`
	ThumbSize int    `mapstructure:"thumb_size"`
	Quality   int    `mapstructure:"quality"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("run.workers", 0)
	v.SetDefault("run.queue_depth", 0)
	v.SetDefault("run.budget", 0)
	v.SetDefault("run.continue", false)
	v.SetDefault("filter.keywords", []string{})
	v.SetDefault("filter.min_image_size", 128)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:72.0) Gecko/20100101 Firefox/72.0")
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.max_body_bytes", 20<<20)
	v.SetDefault("fetch.formats", []string{"jpg", "png"})
	v.SetDefault("fetch.disallowed_directives", []string{})
	v.SetDefault("output.path", "images.parquet")
	v.SetDefault("output.flush_rows", 100)
	v.SetDefault("cache.dir", "./images")
	v.SetDefault("catalog.output", "index.html")
	v.SetDefault("catalog.title", "")
	v.SetDefault("catalog.max_images", 1280)
	v.SetDefault("catalog.thumb_size", 128)
	v.SetDefault("catalog.quality", 80)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for deployment overrides
	v.BindEnv("output.path", "OUTPUT_PATH")
	v.BindEnv("cache.dir", "CACHE_DIR")
	v.BindEnv("fetch.user_agent", "FETCH_USER_AGENT")
	v.BindEnv("fetch.timeout", "FETCH_TIMEOUT")
	v.BindEnv("run.workers", "RUN_WORKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
