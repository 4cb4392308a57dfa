package config

import "time"

// Config is the root configuration for a bookfeed instance.
type Config struct {
	Instance      InstanceConfig         `yaml:"instance"`
	Log           LogConfig              `yaml:"log"`
	Venues        map[string]VenueConfig `yaml:"venues"`
	Subscriptions []SubscriptionConfig   `yaml:"subscriptions"`
	Feed          FeedConfig             `yaml:"feed"`
	Connection    ConnectionConfig       `yaml:"connection"`
	Deribit       DeribitConfig          `yaml:"deribit"`
	Journal       JournalConfig          `yaml:"journal"`
	Poller        PollerConfig           `yaml:"poller"`
	Metrics       MetricsConfig          `yaml:"metrics"`
}

// InstanceConfig identifies this instance in logs and journal rows.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// VenueConfig overrides the built-in endpoints of one venue.
type VenueConfig struct {
	WSURL          string        `yaml:"ws_url"`
	RestURL        string        `yaml:"rest_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// SubscriptionConfig is one stream opened by the run command.
type SubscriptionConfig struct {
	Venue  string `yaml:"venue"`
	Symbol string `yaml:"symbol"`
}

// FeedConfig holds delivery timing.
type FeedConfig struct {
	ThrottleWindow    time.Duration `yaml:"throttle_window"`
	FallbackTimeout   time.Duration `yaml:"fallback_timeout"`
	UnknownVenueDelay time.Duration `yaml:"unknown_venue_delay"`
}

// ConnectionConfig holds WebSocket client settings shared by all sessions.
type ConnectionConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// DeribitConfig bounds snapshot re-fetches triggered by change notifications.
type DeribitConfig struct {
	RefetchRate  float64 `yaml:"refetch_rate"` // per second
	RefetchBurst int     `yaml:"refetch_burst"`
}

// JournalConfig holds the lifecycle journal writer settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PollerConfig holds REST reachability probe settings.
type PollerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// MetricsConfig holds the health and Prometheus server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
