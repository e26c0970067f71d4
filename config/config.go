package config

import "time"

type configDefinition struct {
	Port          int           `koanf:"port" validate:"min=0,max=65535"`
	ApiSecret     string        `koanf:"api_secret"`
	Database      database      `koanf:"database"`
	Logging       logging       `koanf:"logging"`
	Buffer        buffer        `koanf:"buffer"`
	Retry         retry         `koanf:"retry"`
	Ipc           ipc           `koanf:"ipc"`
	Cleanup       cleanup       `koanf:"cleanup"`
	Notifications notifications `koanf:"notifications"`
	Prometheus    Prometheus    `koanf:"prometheus"`
	Sentry        sentry        `koanf:"sentry"`
	Pyroscope     pyroscope     `koanf:"pyroscope"`
}

type database struct {
	Driver   string `koanf:"driver" validate:"oneof=mysql sqlite3"`
	Path     string `koanf:"path" validate:"required_if=Driver sqlite3"`
	Addr     string `koanf:"address" validate:"required_if=Driver mysql"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Db       string `koanf:"db" validate:"required_if=Driver mysql"`
	MaxPool  int    `koanf:"max_pool" validate:"min=1"`
}

type logging struct {
	Debug      bool `koanf:"debug"`
	SaveLogs   bool `koanf:"save_logs"`
	MaxSize    int  `koanf:"max_size"`
	MaxBackups int  `koanf:"max_backups"`
	MaxAge     int  `koanf:"max_age"`
	Compress   bool `koanf:"compress"`
}

// buffer tunes every write-behind buffer. Threshold counts enqueue calls,
// not distinct entities.
type buffer struct {
	Threshold            int `koanf:"threshold" validate:"min=1"`
	IdleIntervalMs       int `koanf:"idle_interval_ms" validate:"min=1"`
	PersistTimeoutMs     int `koanf:"persist_timeout_ms" validate:"min=0"`
	FlushConcurrency     int `koanf:"flush_concurrency" validate:"min=1"`
	RateLimit            int `koanf:"rate_limit" validate:"min=0"`
	BurstCapacity        int `koanf:"burst_capacity" validate:"min=0"`
	WarnAfterFailures    int `koanf:"warn_after_failures" validate:"min=1"`
	MaxConcurrentFlushes int `koanf:"max_concurrent_flushes" validate:"min=1"`
}

type retry struct {
	MaxAttempts int `koanf:"max_attempts" validate:"min=1"`
	BackoffMs   int `koanf:"backoff_ms" validate:"min=0"`
}

type ipc struct {
	ResponseCacheSeconds int `koanf:"response_cache_seconds" validate:"min=0"`
}

type cleanup struct {
	Enabled       bool   `koanf:"enabled"`
	Schedule      string `koanf:"schedule" validate:"required_if=Enabled true"`
	RetentionDays int    `koanf:"retention_days" validate:"min=1"`
}

type notifications struct {
	Urls            []string `koanf:"urls" validate:"dive,url"`
	IntervalSeconds int      `koanf:"interval_seconds" validate:"min=1"`
}

type Prometheus struct {
	Enabled    bool      `koanf:"enabled"`
	Token      string    `koanf:"token"`
	BucketSize []float64 `koanf:"bucket_size"`
}

type sentry struct {
	DSN              string  `koanf:"dsn"`
	SampleRate       float64 `koanf:"sample_rate"`
	EnableTracing    bool    `koanf:"enable_tracing"`
	TracesSampleRate float64 `koanf:"traces_sample_rate"`
}

type pyroscope struct {
	ApplicationName      string `koanf:"application_name"`
	ServerAddress        string `koanf:"server_address"`
	ApiKey               string `koanf:"api_key"`
	BasicAuthUser        string `koanf:"basic_auth_user"`
	BasicAuthPassword    string `koanf:"basic_auth_password"`
	Logger               bool   `koanf:"logger"`
	MutexProfileFraction int    `koanf:"mutex_profile_fraction"`
	BlockProfileRate     int    `koanf:"block_profile_rate"`
}

func (c configDefinition) GetPrometheus() Prometheus {
	return c.Prometheus
}

func (c configDefinition) GetNotificationUrls() []string {
	return c.Notifications.Urls
}

func (c configDefinition) GetNotificationInterval() time.Duration {
	return time.Duration(c.Notifications.IntervalSeconds) * time.Second
}

func (c configDefinition) IdleInterval() time.Duration {
	return time.Duration(c.Buffer.IdleIntervalMs) * time.Millisecond
}

func (c configDefinition) PersistTimeout() time.Duration {
	return time.Duration(c.Buffer.PersistTimeoutMs) * time.Millisecond
}

func (c configDefinition) RetryBackoff() time.Duration {
	return time.Duration(c.Retry.BackoffMs) * time.Millisecond
}

func (c configDefinition) ResponseCacheTTL() time.Duration {
	return time.Duration(c.Ipc.ResponseCacheSeconds) * time.Second
}

var Config = defaultConfig()

func defaultConfig() configDefinition {
	return configDefinition{
		Port: 9004,
		Database: database{
			Driver:  "sqlite3",
			Path:    "storesync.db",
			MaxPool: 10,
		},
		Logging: logging{
			SaveLogs:   true,
			MaxSize:    50,
			MaxBackups: 10,
			MaxAge:     30,
		},
		Buffer: buffer{
			Threshold:            5,
			IdleIntervalMs:       10000,
			PersistTimeoutMs:     5000,
			FlushConcurrency:     4,
			WarnAfterFailures:    3,
			MaxConcurrentFlushes: 2,
		},
		Retry: retry{
			MaxAttempts: 3,
			BackoffMs:   50,
		},
		Ipc: ipc{
			ResponseCacheSeconds: 60,
		},
		Cleanup: cleanup{
			Schedule:      "@hourly",
			RetentionDays: 30,
		},
		Notifications: notifications{
			IntervalSeconds: 1,
		},
		Sentry: sentry{
			SampleRate:       1.0,
			TracesSampleRate: 1.0,
		},
		Pyroscope: pyroscope{
			ApplicationName:      "storesync",
			MutexProfileFraction: 5,
			BlockProfileRate:     5,
		},
	}
}
