// Package config loads settings from an optional file, a .env file and
// FOODCART_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Server    Server    `mapstructure:"server"`
	Store     Store     `mapstructure:"store"`
	Mongo     Mongo     `mapstructure:"mongo"`
	Postgres  Postgres  `mapstructure:"postgres"`
	Supabase  Supabase  `mapstructure:"supabase"`
	Redis     Redis     `mapstructure:"redis"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Media     Media     `mapstructure:"media"`
	S3        S3        `mapstructure:"s3"`
	Log       Log       `mapstructure:"log"`
	Orders    Orders    `mapstructure:"orders"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	CORS      CORS      `mapstructure:"cors"`
	Carts     Carts     `mapstructure:"carts"`
}

type Server struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// PublicURL prefixes links embedded in receipts.
	PublicURL string `mapstructure:"public_url"`
}

type Store struct {
	Driver string `mapstructure:"driver"`
}

type Mongo struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

type Supabase struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Media struct {
	Driver  string `mapstructure:"driver"`
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

type S3 struct {
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Orders struct {
	TransitionPolicy string `mapstructure:"transition_policy"`
}

type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Carts struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":4000")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.public_url", "http://localhost:4000")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "foodcart")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 5*time.Minute)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "foodcart-events")
	v.SetDefault("media.driver", "local")
	v.SetDefault("media.dir", "static/uploads")
	v.SetDefault("media.base_url", "/static/uploads")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("orders.transition_policy", "open")
	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("carts.ttl", 24*time.Hour)
}

// Load reads configuration. cfgFile may be empty. A missing .env file is
// not an error.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(viper.New(), cfgFile)
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("FOODCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory":
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required for the mongo store"))
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres store"))
		}
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			errs = append(errs, errors.New("supabase.url and supabase.key are required for the supabase store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Media.Driver {
	case "local":
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket is required for the s3 media driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media.driver %q", c.Media.Driver))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("ratelimit.rps and ratelimit.burst must be positive"))
	}
	return errors.Join(errs...)
}
