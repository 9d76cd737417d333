package config

import (
	"fmt"
	"strings"
	"time"
)

// ClientConfig tunes the activity telemetry client.
type ClientConfig struct {
	BaseURL string

	LogPath      string
	WhoAmIPath   string
	RefreshPath  string
	LoginPath    string
	CountPath    string
	OverviewPath string
	RunTokenPath string

	BatchSize         int
	FlushInterval     time.Duration
	MaxQueuedAttempts int

	AuthRetryCap   int
	MaxTries       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	RefreshThrottle         time.Duration
	PointsThrottle          time.Duration
	PostSessionRefreshDelay time.Duration
	AlertInterval           time.Duration

	// AlertAfterFailures is how many attempt batches in a row must fail before the user is warned
	AlertAfterFailures int

	RequestTimeout time.Duration
	BeaconTimeout  time.Duration
}

// DefaultClientConfig returns the production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:                 "http://localhost:8080",
		LogPath:                 "/api/log_word_attempt",
		WhoAmIPath:              "/api/auth/whoami",
		RefreshPath:             "/api/auth/refresh",
		LoginPath:               "/api/auth/login",
		CountPath:               "/api/points/count",
		OverviewPath:            "/api/progress/overview",
		RunTokenPath:            "/api/homework/run_token",
		BatchSize:               20,
		FlushInterval:           60 * time.Second,
		MaxQueuedAttempts:       500,
		AuthRetryCap:            3,
		MaxTries:                6,
		RetryBaseDelay:          1500 * time.Millisecond,
		RetryMaxDelay:           30 * time.Second,
		RefreshThrottle:         5 * time.Second,
		PointsThrottle:          10 * time.Second,
		PostSessionRefreshDelay: 800 * time.Millisecond,
		AlertInterval:           60 * time.Second,
		AlertAfterFailures:      2,
		RequestTimeout:          10 * time.Second,
		BeaconTimeout:           2 * time.Second,
	}
}

// LoadClient reads client settings from the environment on top of the defaults.
func LoadClient() (ClientConfig, error) {
	loadDotEnv()

	d := DefaultClientConfig()
	cfg := ClientConfig{
		BaseURL:                 strings.TrimRight(getEnv("RECORDS_BASE_URL", d.BaseURL), "/"),
		LogPath:                 getEnv("RECORDS_LOG_PATH", d.LogPath),
		WhoAmIPath:              getEnv("RECORDS_WHOAMI_PATH", d.WhoAmIPath),
		RefreshPath:             getEnv("RECORDS_REFRESH_PATH", d.RefreshPath),
		LoginPath:               getEnv("RECORDS_LOGIN_PATH", d.LoginPath),
		CountPath:               getEnv("RECORDS_COUNT_PATH", d.CountPath),
		OverviewPath:            getEnv("RECORDS_OVERVIEW_PATH", d.OverviewPath),
		RunTokenPath:            getEnv("RECORDS_RUN_TOKEN_PATH", d.RunTokenPath),
		BatchSize:               getEnvInt("RECORDS_BATCH_SIZE", d.BatchSize),
		FlushInterval:           getEnvDuration("RECORDS_FLUSH_INTERVAL", d.FlushInterval),
		MaxQueuedAttempts:       getEnvInt("RECORDS_MAX_QUEUED", d.MaxQueuedAttempts),
		AuthRetryCap:            getEnvInt("RECORDS_AUTH_RETRY_CAP", d.AuthRetryCap),
		MaxTries:                getEnvInt("RECORDS_MAX_TRIES", d.MaxTries),
		RetryBaseDelay:          getEnvDuration("RECORDS_RETRY_BASE_DELAY", d.RetryBaseDelay),
		RetryMaxDelay:           getEnvDuration("RECORDS_RETRY_MAX_DELAY", d.RetryMaxDelay),
		RefreshThrottle:         getEnvDuration("RECORDS_REFRESH_THROTTLE", d.RefreshThrottle),
		PointsThrottle:          getEnvDuration("RECORDS_POINTS_THROTTLE", d.PointsThrottle),
		PostSessionRefreshDelay: getEnvDuration("RECORDS_POST_SESSION_REFRESH", d.PostSessionRefreshDelay),
		AlertInterval:           getEnvDuration("RECORDS_ALERT_INTERVAL", d.AlertInterval),
		AlertAfterFailures:      getEnvInt("RECORDS_ALERT_AFTER_FAILURES", d.AlertAfterFailures),
		RequestTimeout:          getEnvDuration("RECORDS_REQUEST_TIMEOUT", d.RequestTimeout),
		BeaconTimeout:           getEnvDuration("RECORDS_BEACON_TIMEOUT", d.BeaconTimeout),
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, fmt.Errorf("client config validation: %w", err)
	}
	return cfg, nil
}

// Validate reports settings that would make the client misbehave.
func (c ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("RECORDS_BASE_URL must not be empty")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	if c.MaxTries < 1 {
		return fmt.Errorf("max tries must be at least 1, got %d", c.MaxTries)
	}
	if c.MaxQueuedAttempts < c.BatchSize {
		return fmt.Errorf("max queued attempts (%d) must not be below batch size (%d)", c.MaxQueuedAttempts, c.BatchSize)
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("retry delays must be positive and max >= base")
	}
	// a zero interval lets rate.Sometimes run only once
	if c.RefreshThrottle <= 0 {
		return fmt.Errorf("refresh throttle must be positive")
	}
	if c.AlertInterval <= 0 {
		return fmt.Errorf("alert interval must be positive")
	}
	if c.PointsThrottle <= 0 {
		return fmt.Errorf("points throttle must be positive")
	}
	if c.AlertAfterFailures < 1 {
		return fmt.Errorf("alert after failures must be at least 1, got %d", c.AlertAfterFailures)
	}
	return nil
}

// URL joins the base URL and an endpoint path.
func (c ClientConfig) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
