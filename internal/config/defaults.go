package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID        = "bookfeed"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultThrottleWindow    = 300 * time.Millisecond
	DefaultFallbackTimeout   = 20 * time.Second
	DefaultUnknownVenueDelay = 1 * time.Second
	DefaultPingInterval      = 20 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultConnBufferSize    = 1024
	DefaultRefetchRate       = 5.0
	DefaultRefetchBurst      = 2
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 100
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 1000
	DefaultPollInterval      = 1 * time.Minute
	DefaultPollConcurrency   = 3
	DefaultPollTimeout       = 5 * time.Second
	DefaultPollMaxRetries    = 2
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Feed defaults
	if c.Feed.ThrottleWindow == 0 {
		c.Feed.ThrottleWindow = DefaultThrottleWindow
	}
	if c.Feed.FallbackTimeout == 0 {
		c.Feed.FallbackTimeout = DefaultFallbackTimeout
	}
	if c.Feed.UnknownVenueDelay == 0 {
		c.Feed.UnknownVenueDelay = DefaultUnknownVenueDelay
	}

	// Connection defaults
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultConnBufferSize
	}

	// Deribit defaults
	if c.Deribit.RefetchRate == 0 {
		c.Deribit.RefetchRate = DefaultRefetchRate
	}
	if c.Deribit.RefetchBurst == 0 {
		c.Deribit.RefetchBurst = DefaultRefetchBurst
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}
	if c.Poller.MaxRetries == 0 {
		c.Poller.MaxRetries = DefaultPollMaxRetries
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
