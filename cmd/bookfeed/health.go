package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/bookfeed/internal/feed"
	"github.com/rickgao/bookfeed/internal/metrics"
	"github.com/rickgao/bookfeed/internal/poller"
	"github.com/rickgao/bookfeed/internal/writer"
)

type statsSource interface {
	Stats(ctx context.Context) (feed.Stats, error)
}

type probeSource interface {
	Results() []poller.Result
}

type journalSource interface {
	Stats() writer.WriterMetrics
}

type subscriptionHealth struct {
	Venue       string  `json:"venue"`
	Symbol      string  `json:"symbol"`
	FirstLoaded bool    `json:"first_loaded"`
	BestBid     float64 `json:"best_bid"`
	BestAsk     float64 `json:"best_ask"`
}

type sessionHealth struct {
	Venue     string    `json:"venue"`
	Symbol    string    `json:"symbol"`
	State     string    `json:"state"`
	Connected bool      `json:"connected"`
	OpenedAt  time.Time `json:"opened_at,omitzero"`
	Frames    int64     `json:"frames"`
	Dropped   int64     `json:"dropped"`
	Overflows int64     `json:"overflows"`
}

type healthReport struct {
	Status        string                `json:"status"`
	Instance      string                `json:"instance"`
	Subscriptions []subscriptionHealth  `json:"subscriptions"`
	Sessions      []sessionHealth       `json:"sessions"`
	PendingTimers int                   `json:"pending_timers"`
	Probes        []poller.Result       `json:"probes,omitempty"`
	Journal       *writer.WriterMetrics `json:"journal,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// createHandler serves /health and the Prometheus endpoint. probes and
// journal may be nil.
func createHandler(instance string, svc statsSource, probes probeSource, journal journalSource,
	reg *prometheus.Registry, metricsPath string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler(reg))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := healthReport{
			Status:        "healthy",
			Instance:      instance,
			Subscriptions: []subscriptionHealth{},
			Sessions:      []sessionHealth{},
		}
		code := http.StatusOK

		stats, err := svc.Stats(ctx)
		if err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			for _, s := range stats.Subscriptions {
				report.Subscriptions = append(report.Subscriptions, subscriptionHealth{
					Venue:       string(s.Key.Venue),
					Symbol:      s.Key.Symbol,
					FirstLoaded: s.FirstLoaded,
					BestBid:     s.BestBid,
					BestAsk:     s.BestAsk,
				})
			}
			for _, s := range stats.Connection.Sessions {
				report.Sessions = append(report.Sessions, sessionHealth{
					Venue:     string(s.Venue),
					Symbol:    s.Symbol,
					State:     s.State.String(),
					Connected: s.Connected,
					OpenedAt:  s.OpenedAt,
					Frames:    s.Frames,
					Dropped:   s.Dropped,
					Overflows: s.Overflows,
				})
			}
			report.PendingTimers = stats.PendingTimers
		}

		if probes != nil {
			report.Probes = probes.Results()
			for _, p := range report.Probes {
				if !p.OK && report.Status == "healthy" {
					report.Status = "degraded"
				}
			}
		}

		if journal != nil {
			js := journal.Stats()
			report.Journal = &js
			if js.Errors > 0 && report.Status == "healthy" {
				report.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Warn("failed to encode health report", "error", err)
		}
	})

	return mux
}
