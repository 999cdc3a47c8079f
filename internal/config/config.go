package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	defaultListen    = ":8000"
	defaultURL       = "http://localhost:8000"
	defaultWorkDir   = "temp"
	defaultKeepCount = 10
	defaultBinary    = "yt-dlp"
)

// ExtractorConfig configures the external downloader invocation.
type ExtractorConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"` // zero means no timeout
}

// StoreConfig configures the job folder store.
type StoreConfig struct {
	WorkDir string
	URL     string
}

// RetentionConfig configures the keep-newest-N pruning of the work dir.
type RetentionConfig struct {
	WorkDir   string
	KeepCount int
}

type Config struct {
	Listen    string          `yaml:"listen"`
	URL       string          `yaml:"url"` // public base url used in links
	WorkDir   string          `yaml:"work_dir"`
	KeepCount int             `yaml:"keep_count"`
	RedisURL  string          `yaml:"redis_url"` // empty disables fetch counters
	LogLevel  string          `yaml:"log_level"`
	Extractor ExtractorConfig `yaml:"extractor"`
}

func (c *Config) SetDefaults() {
	c.Listen = defaultListen
	c.URL = defaultURL
	c.WorkDir = defaultWorkDir
	c.KeepCount = defaultKeepCount
	c.LogLevel = LogLevelInfo
	c.Extractor.Binary = defaultBinary
}

func (c *Config) StoreConfig() *StoreConfig {
	return &StoreConfig{
		WorkDir: c.WorkDir,
		URL:     c.URL,
	}
}

func (c *Config) RetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		WorkDir:   c.WorkDir,
		KeepCount: c.KeepCount,
	}
}

/*
Load reads the yaml config file if it exists, then applies environment
overrides. A missing config file is not an error, the defaults describe
a working local setup.
*/
func Load(cfgPath string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if data, err := os.ReadFile(cfgPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", cfgPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot read config file %s: %w", cfgPath, err)
	}

	// .env is optional too
	_ = godotenv.Load()
	cfg.applyEnv()

	if cfg.KeepCount < 1 {
		return nil, fmt.Errorf("keep_count must be positive")
	}

	return cfg, nil
}

func MustLoad(cfgPath string) *Config {
	cfg, err := Load(cfgPath)
	if err != nil {
		panic(err)
	}

	return cfg
}

func (c *Config) applyEnv() {
	setString(&c.Listen, "CHAPTERCUT_LISTEN")
	setString(&c.URL, "CHAPTERCUT_URL")
	setString(&c.WorkDir, "CHAPTERCUT_WORK_DIR")
	setString(&c.RedisURL, "CHAPTERCUT_REDIS_URL")
	setString(&c.LogLevel, "CHAPTERCUT_LOG_LEVEL")
	setString(&c.Extractor.Binary, "CHAPTERCUT_YTDLP_BINARY")

	if val, exists := os.LookupEnv("CHAPTERCUT_KEEP_COUNT"); exists {
		if n, err := strconv.Atoi(val); err == nil {
			c.KeepCount = n
		}
	}
}

func setString(dst *string, key string) {
	if val, exists := os.LookupEnv(key); exists {
		*dst = val
	}
}
