package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rickgao/bookfeed/internal/model"
)

var knownVenues = map[model.VenueID]bool{
	model.OKX:     true,
	model.Bybit:   true,
	model.Deribit: true,
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	names := make([]string, 0, len(c.Venues))
	for name := range c.Venues {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !knownVenues[model.VenueID(name)] {
			return fmt.Errorf("venues.%s: unknown venue", name)
		}
		if c.Venues[name].ConnectTimeout < 0 {
			return fmt.Errorf("venues.%s.connect_timeout must be >= 0", name)
		}
	}

	// Unknown venues are allowed here; they receive an empty book.
	for i, sub := range c.Subscriptions {
		if sub.Venue == "" {
			return fmt.Errorf("subscriptions[%d].venue is required", i)
		}
		if sub.Symbol == "" {
			return fmt.Errorf("subscriptions[%d].symbol is required", i)
		}
	}

	if c.Feed.ThrottleWindow <= 0 {
		return errors.New("feed.throttle_window must be > 0")
	}
	if c.Feed.FallbackTimeout <= 0 {
		return errors.New("feed.fallback_timeout must be > 0")
	}
	if c.Feed.UnknownVenueDelay <= 0 {
		return errors.New("feed.unknown_venue_delay must be > 0")
	}

	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Deribit.RefetchRate < 0 {
		return errors.New("deribit.refetch_rate must be >= 0")
	}
	if c.Deribit.RefetchBurst < 1 {
		return errors.New("deribit.refetch_burst must be >= 1")
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
