package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Port                    string
	MetricsPort             string
	Env                     string
	LogLevel                string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	RedisURL                string
	JWTSecret               string

	// StoryTickPeriod is one progress step of the story viewer
	StoryTickPeriod time.Duration
	// VisibilityWindow is how long feed visibility reports are batched
	VisibilityWindow time.Duration
	// StoryResyncSpec is the cron schedule of the story index resync
	StoryResyncSpec string
	WriteTimeout    time.Duration
}

// Load reads configuration from .env, the environment and then args, each
// overriding the previous. A missing .env file is not an error.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "moments"),
		RedisURL:                getEnv("REDIS_URL", ""),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		StoryResyncSpec:         getEnv("STORY_RESYNC_SPEC", "@every 1m"),
	}

	var err error
	if cfg.StoryTickPeriod, err = getDuration("STORY_TICK_PERIOD", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.VisibilityWindow, err = getDuration("VISIBILITY_WINDOW", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	flagSet := pflag.NewFlagSet("moments", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flagSet.StringVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Prometheus listen port (empty disables)")
	flagSet.StringVar(&cfg.Env, "env", cfg.Env, "deployment environment")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flagSet.DurationVar(&cfg.StoryTickPeriod, "tick-period", cfg.StoryTickPeriod, "story viewer progress step")
	flagSet.DurationVar(&cfg.VisibilityWindow, "visibility-window", cfg.VisibilityWindow, "feed visibility batching window")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StoryTickPeriod <= 0 {
		return fmt.Errorf("story tick period must be positive, got %s", c.StoryTickPeriod)
	}
	if c.VisibilityWindow <= 0 {
		return fmt.Errorf("visibility window must be positive, got %s", c.VisibilityWindow)
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "supersecretjwtkey"
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
