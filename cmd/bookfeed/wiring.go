package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/rickgao/bookfeed/internal/config"
	"github.com/rickgao/bookfeed/internal/connection"
	"github.com/rickgao/bookfeed/internal/feed"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/poller"
	"github.com/rickgao/bookfeed/internal/venue"
	"github.com/rickgao/bookfeed/internal/writer"
)

// loadConfig reads --config, or returns the defaults when it is empty.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(configPath)
}

// newLogger builds the slog handler selected by the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func venueOverrides(cfg *config.Config) map[model.VenueID]venue.Override {
	overrides := make(map[model.VenueID]venue.Override, len(cfg.Venues))
	for id, v := range cfg.Venues {
		overrides[model.VenueID(id)] = venue.Override{
			WSURL:          v.WSURL,
			RestURL:        v.RestURL,
			ConnectTimeout: v.ConnectTimeout,
		}
	}
	return overrides
}

func feedConfig(cfg *config.Config) feed.Config {
	client := connection.DefaultClientConfig()
	client.PingInterval = cfg.Connection.PingInterval
	client.PingTimeout = cfg.Connection.PingTimeout
	client.WriteTimeout = cfg.Connection.WriteTimeout
	client.BufferSize = cfg.Connection.BufferSize

	return feed.Config{
		ThrottleWindow:    cfg.Feed.ThrottleWindow,
		FallbackTimeout:   cfg.Feed.FallbackTimeout,
		UnknownVenueDelay: cfg.Feed.UnknownVenueDelay,
		Connection: connection.ManagerConfig{
			Client:       client,
			RefetchRate:  cfg.Deribit.RefetchRate,
			RefetchBurst: cfg.Deribit.RefetchBurst,
		},
	}
}

func writerConfig(cfg *config.Config) writer.WriterConfig {
	return writer.WriterConfig{
		InstanceID:    cfg.Instance.ID,
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
		BufferSize:    cfg.Journal.BufferSize,
	}
}

func pollerConfig(cfg *config.Config) poller.Config {
	return poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}
}

// logDelivery returns a callback that logs every delivered book.
func logDelivery(logger *slog.Logger) model.Callback {
	return func(md model.MarketData) {
		logger.Info("book",
			"venue", string(md.Venue),
			"symbol", md.Book.Symbol,
			"best_bid", md.Book.BestBid(),
			"best_ask", md.Book.BestAsk(),
			"bids", len(md.Book.Bids),
			"asks", len(md.Book.Asks),
		)
	}
}
