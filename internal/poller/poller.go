package poller

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bookfeed/internal/api"
	"github.com/rickgao/bookfeed/internal/metrics"
	"github.com/rickgao/bookfeed/internal/model"
)

// TimeSource answers a venue's server time. *api.Client implements it.
type TimeSource interface {
	ServerTime(ctx context.Context, venue model.VenueID) (time.Time, error)
}

// SourcesFor builds one REST client per venue that has a REST base URL.
func SourcesFor(venues []model.Venue, opts ...api.ClientOption) map[model.VenueID]TimeSource {
	sources := make(map[model.VenueID]TimeSource, len(venues))
	for _, v := range venues {
		if v.RestURL == "" {
			continue
		}
		sources[v.ID] = api.NewClient(string(v.ID), v.RestURL, opts...)
	}
	return sources
}

// Result is the outcome of one reachability probe.
type Result struct {
	Venue   model.VenueID `json:"venue"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Skew    time.Duration `json:"skew"` // server clock minus local clock at the midpoint of the call
	Error   string        `json:"error,omitempty"`
	At      time.Time     `json:"at"`
}

// ResultHandler receives every probe result.
type ResultHandler interface {
	HandleResult(r Result)
}

// ResultHandlerFunc is a function adapter for ResultHandler.
type ResultHandlerFunc func(Result)

func (f ResultHandlerFunc) HandleResult(r Result) {
	f(r)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Probe interval (default: 1m)
	Concurrency int           // Max concurrent probes (default: 3)
	Timeout     time.Duration // Per-probe timeout (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 3,
		Timeout:     5 * time.Second,
	}
}

// Poller periodically probes each venue's REST API.
type Poller struct {
	cfg     Config
	sources map[model.VenueID]TimeSource
	handler ResultHandler
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.RWMutex
	last map[model.VenueID]Result

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. handler and m may be nil.
func New(cfg Config, sources map[model.VenueID]TimeSource, handler ResultHandler, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Poller{
		cfg:     cfg,
		sources: sources,
		handler: handler,
		metrics: m,
		logger:  logger,
		last:    make(map[model.VenueID]Result),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("venue poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"venues", len(p.sources),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("venue poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the latest result per venue, ordered by venue ID.
func (p *Poller) Results() []Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Result, 0, len(p.last))
	for _, r := range p.last {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.PollAll(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PollAll(p.ctx)
		}
	}
}

// PollAll probes every venue once with bounded concurrency and returns the
// results ordered by venue ID.
func (p *Poller) PollAll(ctx context.Context) []Result {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	var mu sync.Mutex
	results := make([]Result, 0, len(p.sources))

	for venue, src := range p.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r, ok := p.probe(ctx, venue, src)
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Venue < results[j].Venue })

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	p.logger.Debug("poll cycle complete",
		"venues", len(results),
		"failed", failed,
		"duration", time.Since(start),
	)
	return results
}

// probe checks a single venue and records the result. It reports false,
// recording nothing, when parent ended before the venue answered; a probe
// that runs past its own timeout is still a failure.
func (p *Poller) probe(parent context.Context, venue model.VenueID, src TimeSource) (Result, bool) {
	ctx, cancel := context.WithTimeout(parent, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	serverTime, err := src.ServerTime(ctx, venue)
	latency := time.Since(start)

	if err != nil && parent.Err() != nil {
		p.logger.Debug("venue probe abandoned", "venue", string(venue), "error", err)
		return Result{}, false
	}

	r := Result{Venue: venue, Latency: latency, At: start}
	if err != nil {
		r.Error = err.Error()
		p.logger.Warn("venue probe failed", "venue", string(venue), "error", err)
	} else {
		r.OK = true
		r.Skew = serverTime.Sub(start.Add(latency / 2))
	}

	p.metrics.ObserveProbe(venue, r.OK, latency)

	p.mu.Lock()
	p.last[venue] = r
	p.mu.Unlock()

	if p.handler != nil {
		p.handler.HandleResult(r)
	}
	return r, true
}
