package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// app config, loaded from defaults, an optional yaml file and env vars
type Config struct {
	Environment  string   `mapstructure:"environment"`
	Port         string   `mapstructure:"port"`
	ServiceURL   string   `mapstructure:"service_url"`
	FrontendURLs []string `mapstructure:"frontend_urls"`
	Version      string   `mapstructure:"version"`

	DatabaseURL string         `mapstructure:"database_url"`
	Postgres    PostgresConfig `mapstructure:"postgres"`

	AI        AIConfig        `mapstructure:"ai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	Storage   StorageConfig   `mapstructure:"storage"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

type AIConfig struct {
	Provider string `mapstructure:"provider"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MiniModel      string `mapstructure:"mini_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	BaseURL        string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MiniModel      string `mapstructure:"mini_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	BaseURL        string `mapstructure:"base_url"`
}

type EmbeddingConfig struct {
	Dimensions int `mapstructure:"dimensions"`
	BatchSize  int `mapstructure:"batch_size"`
}

type StorageConfig struct {
	Backend        string        `mapstructure:"backend"`
	Bucket         string        `mapstructure:"bucket"`
	LocalDir       string        `mapstructure:"local_dir"`
	SignedURLTTL   time.Duration `mapstructure:"signed_url_ttl"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type TasksConfig struct {
	Backend  string `mapstructure:"backend"`
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
	Queue    string `mapstructure:"queue"`
	RedisKey string `mapstructure:"redis_key"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	InternalToken string        `mapstructure:"internal_token"`
}

type JobsConfig struct {
	StaleAfter        time.Duration `mapstructure:"stale_after"`
	SweepSchedule     string        `mapstructure:"sweep_schedule"`
	IdempotencyWindow time.Duration `mapstructure:"idempotency_window"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type FeedbackConfig struct {
	ExportEnabled  bool   `mapstructure:"export_enabled"`
	ExportSchedule string `mapstructure:"export_schedule"`
	ExportPrefix   string `mapstructure:"export_prefix"`
}

// keys are dotted and map to upper snake env vars, e.g. postgres.host -> POSTGRES_HOST
func applyDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("port", "8080")
	v.SetDefault("service_url", "http://localhost:8080")
	v.SetDefault("frontend_urls", []string{"http://localhost:5173"})
	v.SetDefault("version", "1.0.0")

	v.SetDefault("database_url", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.db", "studybuddy")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.mini_model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.mini_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 100)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local_dir", "./data/uploads")
	v.SetDefault("storage.signed_url_ttl", 15*time.Minute)
	v.SetDefault("storage.max_upload_bytes", int64(50<<20))

	v.SetDefault("tasks.backend", "inline")
	v.SetDefault("tasks.project", "")
	v.SetDefault("tasks.location", "us-central1")
	v.SetDefault("tasks.queue", "studybuddy-jobs")
	v.SetDefault("tasks.redis_key", "studybuddy:jobs")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.internal_token", "")

	v.SetDefault("jobs.stale_after", 30*time.Minute)
	v.SetDefault("jobs.sweep_schedule", "*/5 * * * *")
	v.SetDefault("jobs.idempotency_window", 10*time.Minute)
	v.SetDefault("jobs.lock_ttl", 30*time.Second)

	v.SetDefault("ratelimit.rps", 2.0)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("feedback.export_enabled", false)
	v.SetDefault("feedback.export_schedule", "0 2 * * *")
	v.SetDefault("feedback.export_prefix", "exports")
}

// LoadConfig reads configuration. An empty path searches for studybuddy.yaml in the
// working directory; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("studybuddy")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return errors.New("unsupported AI provider: " + c.AI.Provider + ". Currently supported: gemini, openai")
	}

	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the gcs backend")
		}
	case "local":
	default:
		return errors.New("unsupported storage backend: " + c.Storage.Backend)
	}

	switch c.Tasks.Backend {
	case "cloudtasks":
		if c.Tasks.Project == "" {
			return errors.New("tasks.project is required for the cloudtasks backend")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis task backend")
		}
	case "inline":
	default:
		return errors.New("unsupported task backend: " + c.Tasks.Backend)
	}

	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding.dimensions must be positive")
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in production")
		}
		if c.Auth.InternalToken == "" {
			return errors.New("auth.internal_token is required in production")
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == EnvDevelopment }

func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// JWTSecretOrDefault falls back to a fixed secret outside production.
func (c *Config) JWTSecretOrDefault() string {
	if c.Auth.JWTSecret == "" {
		return "dev"
	}
	return c.Auth.JWTSecret
}

// DSN prefers DATABASE_URL and otherwise builds one from the POSTGRES_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	p := c.Postgres
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode)
}

// Secrets lists configured credentials that must never reach the logs.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{c.Gemini.APIKey, c.OpenAI.APIKey, c.Auth.JWTSecret, c.Auth.InternalToken, c.Redis.Password} {
		if len(s) >= 6 {
			out = append(out, s)
		}
	}
	return out
}
