package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Errorf("AccessTokenTTL = %v, want 1h", cfg.AccessTokenTTL)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name:    "missing secret",
			env:     map[string]string{"JWT_SECRET": ""},
			wantErr: true,
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"JWT_SECRET": "0123456789abcdef", "DATABASE_TYPE": "postgres"},
			wantErr: true,
		},
		{
			name:    "unknown database",
			env:     map[string]string{"JWT_SECRET": "0123456789abcdef", "DATABASE_TYPE": "oracle"},
			wantErr: true,
		},
		{
			name: "mysql with url",
			env: map[string]string{
				"JWT_SECRET":    "0123456789abcdef",
				"DATABASE_TYPE": "mysql",
				"DATABASE_URL":  "user:pass@tcp(localhost:3306)/records?parseTime=true",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV_FILE", "does-not-exist.env")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDatabaseIgnoresSecret(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_TYPE", "sqlite")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should require JWT_SECRET")
	}
	cfg, err := LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase() error = %v", err)
	}
	if cfg.DatabasePath != "./wordrecords.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}

	t.Setenv("DATABASE_TYPE", "postgres")
	if _, err := LoadDatabase(); err == nil {
		t.Error("LoadDatabase() should still validate the database settings")
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "empty uses default", value: "", want: 5 * time.Second},
		{name: "go duration", value: "90s", want: 90 * time.Second},
		{name: "milliseconds", value: "1500", want: 1500 * time.Millisecond},
		{name: "garbage uses default", value: "soon", want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := getEnvDuration("TEST_DURATION", 5*time.Second); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadClient(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("RECORDS_BASE_URL", "https://records.example.com/")
	t.Setenv("RECORDS_BATCH_SIZE", "5")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", cfg.BatchSize)
	}
	if got := cfg.URL(cfg.LogPath); got != "https://records.example.com/api/log_word_attempt" {
		t.Errorf("URL() = %q", got)
	}
	if cfg.AuthRetryCap != 3 {
		t.Errorf("AuthRetryCap = %d, want 3", cfg.AuthRetryCap)
	}
}

func TestClientConfigValidate(t *testing.T) {
	cfg := DefaultClientConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero batch size")
	}

	cfg = DefaultClientConfig()
	cfg.MaxQueuedAttempts = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when queue cap is below batch size")
	}
}

func TestClientConfigRejectsNonPositiveIntervals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
	}{
		{name: "zero refresh throttle", mutate: func(c *ClientConfig) { c.RefreshThrottle = 0 }},
		{name: "negative refresh throttle", mutate: func(c *ClientConfig) { c.RefreshThrottle = -time.Second }},
		{name: "zero alert interval", mutate: func(c *ClientConfig) { c.AlertInterval = 0 }},
		{name: "zero points throttle", mutate: func(c *ClientConfig) { c.PointsThrottle = 0 }},
		{name: "negative points throttle", mutate: func(c *ClientConfig) { c.PointsThrottle = -time.Second }},
		{name: "zero alert threshold", mutate: func(c *ClientConfig) { c.AlertAfterFailures = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
