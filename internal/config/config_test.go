package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.AI.Provider != "gemini" {
		t.Fatalf("expected provider gemini, got %s", cfg.AI.Provider)
	}
	if cfg.Jobs.StaleAfter != 30*time.Minute {
		t.Fatalf("expected 30m stale threshold, got %s", cfg.Jobs.StaleAfter)
	}
	if cfg.Tasks.Queue != "studybuddy-jobs" || cfg.Tasks.Location != "us-central1" {
		t.Fatalf("unexpected task queue defaults: %+v", cfg.Tasks)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Fatalf("expected 1536 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development environment by default")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("JOBS_STALE_AFTER", "45m")
	t.Setenv("STORAGE_MAX_UPLOAD_BYTES", "1024")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AI.Provider != "openai" {
		t.Fatalf("expected openai provider, got %s", cfg.AI.Provider)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Fatalf("expected postgres host override, got %s", cfg.Postgres.Host)
	}
	if cfg.Jobs.StaleAfter != 45*time.Minute {
		t.Fatalf("expected 45m, got %s", cfg.Jobs.StaleAfter)
	}
	if cfg.Storage.MaxUploadBytes != 1024 {
		t.Fatalf("expected upload limit 1024, got %d", cfg.Storage.MaxUploadBytes)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	data := []byte("tasks:\n  backend: redis\nredis:\n  addr: localhost:6379\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Tasks.Backend != "redis" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("file values not applied: %+v %+v", cfg.Tasks, cfg.Redis)
	}
}

func TestLoadConfig_UnsupportedProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AI_PROVIDER", "unknown")

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: EnvDevelopment,
			AI:          AIConfig{Provider: "gemini"},
			Storage:     StorageConfig{Backend: "local"},
			Tasks:       TasksConfig{Backend: "inline"},
			Embedding:   EmbeddingConfig{Dimensions: 8},
		}
	}

	cases := map[string]func(*Config){
		"gcs without bucket":         func(c *Config) { c.Storage.Backend = "gcs" },
		"cloudtasks without project": func(c *Config) { c.Tasks.Backend = "cloudtasks" },
		"redis without addr":         func(c *Config) { c.Tasks.Backend = "redis" },
		"production without secret":  func(c *Config) { c.Environment = EnvProduction },
		"zero dimensions":            func(c *Config) { c.Embedding.Dimensions = 0 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected base config to validate, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{Postgres: PostgresConfig{Host: "h", Port: "1", User: "u", Password: "p", DB: "d", SSLMode: "disable"}}
	if got := cfg.DSN(); got != "host=h user=u password=p dbname=d port=1 sslmode=disable" {
		t.Fatalf("unexpected dsn %s", got)
	}
	cfg.DatabaseURL = "postgres://x"
	if cfg.DSN() != "postgres://x" {
		t.Fatalf("expected DATABASE_URL to win")
	}
}
