package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SessionConfig struct {
	// Backend is one of "sqlite", "redis" or "memory".
	Backend           string
	Path              string
	KeyPrefix         string
	ExclusiveChannels bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	StaleTime        time.Duration
	CacheTime        time.Duration
	SweepSchedule    string
	KeepPreviousData bool
}

type UploadConfig struct {
	MaxBytes     int64
	AllowedTypes []string
}

type CatalogConfig struct {
	DefaultLimit int
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type SecurityConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PresignTTL    time.Duration
	PublicBaseURL string
}

type AppConfig struct {
	Environment string
	API         APIConfig
	Session     SessionConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Upload      UploadConfig
	Catalog     CatalogConfig
	Metrics     MetricsConfig

	// Mock API server only.
	HTTP     HTTPConfig
	Security SecurityConfig
	Storage  StorageConfig
}

// Load reads config.yaml (if any) and TICKETONE_* environment variables
// on top of the defaults.
func Load() (*AppConfig, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path
// searches the default locations.
func LoadFile(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
	}

	v.SetEnvPrefix("TICKETONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	switch c.Session.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.baseurl is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("config: upload.maxbytes must be positive")
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return fmt.Errorf("config: upload.allowedtypes must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.baseurl", "http://localhost:8080/api")
	v.SetDefault("api.timeout", "10s")

	v.SetDefault("session.backend", "sqlite")
	v.SetDefault("session.path", "ticketone.db")
	v.SetDefault("session.keyprefix", "ticketone:session")
	v.SetDefault("session.exclusivechannels", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.staletime", "30s")
	v.SetDefault("cache.cachetime", "5m")
	v.SetDefault("cache.sweepschedule", "@every 1m")
	v.SetDefault("cache.keeppreviousdata", true)

	v.SetDefault("upload.maxbytes", 5*1024*1024)
	v.SetDefault("upload.allowedtypes", []string{"image/jpeg", "image/png"})

	v.SetDefault("catalog.defaultlimit", 10)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9091")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("security.jwtsecret", "ticketone-dev-secret")
	v.SetDefault("security.jwtttl", "2h")

	v.SetDefault("storage.bucket", "ticket-one")
	v.SetDefault("storage.region", "ap-south-1")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.presignttl", "10m")
}
