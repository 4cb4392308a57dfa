package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/bookfeed/internal/metrics"
	"github.com/rickgao/bookfeed/internal/model"
)

const insertEvent = `
	INSERT INTO feed_events (id, instance_id, kind, venue, symbol, source_id, close_code, detail, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// BatchSender is the part of *pgxpool.Pool the writer uses.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// JournalWriter consumes lifecycle events and writes them to feed_events.
type JournalWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Input from the event loop
	input chan model.LifecycleEvent

	// Database
	db BatchSender

	// Batching
	batch   []model.LifecycleEvent
	batchMu sync.Mutex

	// Lifecycle
	mu      sync.RWMutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Stats
	stats WriterMetrics
}

// NewJournalWriter creates a new JournalWriter. m may be nil.
func NewJournalWriter(cfg WriterConfig, db BatchSender, m *metrics.Metrics, logger *slog.Logger) *JournalWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	return &JournalWriter{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		input:   make(chan model.LifecycleEvent, cfg.BufferSize),
		db:      db,
		batch:   make([]model.LifecycleEvent, 0, cfg.BatchSize),
	}
}

// Record queues ev for writing. It never blocks: when the buffer is full the
// event is dropped and counted.
func (w *JournalWriter) Record(ev model.LifecycleEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		w.dropped(ev, "writer stopped")
		return
	}

	select {
	case w.input <- ev:
		w.batchMu.Lock()
		w.stats.Received++
		w.batchMu.Unlock()
	default:
		w.dropped(ev, "buffer full")
	}
}

func (w *JournalWriter) dropped(ev model.LifecycleEvent, reason string) {
	w.batchMu.Lock()
	w.stats.Dropped++
	w.batchMu.Unlock()
	w.metrics.JournalEvent("dropped", 1)
	w.logger.Warn("journal event dropped", "reason", reason, "kind", string(ev.Kind), "venue", string(ev.Venue))
}

// Start begins consuming events and writing to the database. Cancelling ctx
// does not stop the writer; call Stop so buffered events are flushed.
func (w *JournalWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	w.wg.Add(1)
	go w.run()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains buffered events, flushes them and shuts the writer down.
func (w *JournalWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.input)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}
	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

// Stats returns current counters.
func (w *JournalWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// run accumulates events into batches and flushes them on size or interval.
func (w *JournalWriter) run() {
	defer w.wg.Done()

	interval := w.cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultWriterConfig().FlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.input:
			if !ok {
				// Input closed by Stop: final flush.
				w.flush()
				return
			}
			if w.add(ev) {
				w.flush()
			}
		case <-ticker.C:
			w.flush()
		}
	}
}

// add appends ev to the batch and reports whether the batch is full.
func (w *JournalWriter) add(ev model.LifecycleEvent) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, ev)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch to the database.
func (w *JournalWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]model.LifecycleEvent, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		w.metrics.JournalEvent("error", len(batch))
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()
	w.metrics.JournalEvent("written", len(batch)-conflicts)

	w.logger.Debug("flushed journal events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *JournalWriter) batchInsert(events []model.LifecycleEvent) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(insertEvent,
			ev.ID, w.cfg.InstanceID, string(ev.Kind), string(ev.Venue), ev.Symbol,
			ev.SourceID, ev.CloseCode, ev.Detail, ev.At,
		)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range events {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
