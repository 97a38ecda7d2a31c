package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the voice service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Providers     ProviderConfig      `mapstructure:"providers"`
	Speech        SpeechConfig        `mapstructure:"speech"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	S3      StorageS3Config    `mapstructure:"s3"`
	Local   StorageLocalConfig `mapstructure:"local"`
}

type StorageS3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type StorageLocalConfig struct {
	Directory string `mapstructure:"directory"`
	BaseURL   string `mapstructure:"base_url"`
}

type ProviderConfig struct {
	OpenAIKey     string `mapstructure:"openai_key"`
	ElevenLabsKey string `mapstructure:"elevenlabs_key"`
}

type SpeechConfig struct {
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	MaxTextLength    int           `mapstructure:"max_text_length"`
	DefaultSpeed     float64       `mapstructure:"default_speed"`
	DefaultPauseSecs float64       `mapstructure:"default_pause_secs"`
	Pricing          PricingConfig `mapstructure:"pricing"`
}

type PricingConfig struct {
	OpenAIPer1KChars     string `mapstructure:"openai_per_1k_chars"`
	ElevenLabsPer1KChars string `mapstructure:"elevenlabs_per_1k_chars"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else {
		if cfg := os.Getenv("VOICE_CONFIG_FILE"); cfg != "" {
			v.SetConfigFile(cfg)
			explicitFile = true
		}
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("voice")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and fills soft defaults.
func (c *Config) Validate() error {
	var missing []string

	if c.Redis.URL == "" {
		missing = append(missing, "VOICE_REDIS_URL")
	}
	if c.Providers.OpenAIKey == "" && c.Providers.ElevenLabsKey == "" {
		missing = append(missing, "VOICE_PROVIDERS_OPENAI_KEY or VOICE_PROVIDERS_ELEVENLABS_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Speech.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case "":
		s.Backend = "local"
	case "s3":
		if s.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket must be provided for s3 storage")
		}
		if s.S3.Region == "" && s.S3.Endpoint == "" {
			return fmt.Errorf("storage.s3 requires a region or an explicit endpoint")
		}
	case "local":
	default:
		return fmt.Errorf("storage.backend must be s3 or local, got %q", s.Backend)
	}
	return nil
}

func (s *SpeechConfig) validate() error {
	if s.CacheTTL <= 0 {
		s.CacheTTL = 24 * time.Hour
	}
	if s.MaxTextLength <= 0 {
		s.MaxTextLength = 5000
	}
	if s.DefaultSpeed <= 0 {
		s.DefaultSpeed = 1.0
	}
	if s.DefaultPauseSecs <= 0 {
		s.DefaultPauseSecs = 5
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8090")
	v.SetDefault("server.body_limit_mb", 1)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local.directory", "./data/audio")
	v.SetDefault("storage.local.base_url", "http://localhost:8090/audio")

	v.SetDefault("speech.cache_ttl", "24h")
	v.SetDefault("speech.max_text_length", 5000)
	v.SetDefault("speech.default_speed", 1.0)
	v.SetDefault("speech.default_pause_secs", 5)
	v.SetDefault("speech.pricing.openai_per_1k_chars", "0.015")
	v.SetDefault("speech.pricing.elevenlabs_per_1k_chars", "0.30")

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
