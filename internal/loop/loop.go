package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gammazero/deque"
)

// ErrStopped is returned when work is posted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop runs posted functions one at a time on a single goroutine.
type Loop struct {
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	queue   deque.Deque[func()]
	stopped bool
	notify  chan struct{}
	done    chan struct{}
}

// New creates a Loop. Call Run to start processing.
func New(clock Clock, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		clock:  clock,
		logger: logger,
		queue:  deque.Deque[func()]{},
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Clock returns the loop's time source.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Run processes posted functions until ctx is cancelled. Functions still
// queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue.Clear()
		l.mu.Unlock()
	}()

	for {
		f, ok := l.next()
		if ok {
			l.exec(f)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues f to run on the loop. It never blocks. It returns false if the
// loop has stopped.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue.PushBack(f)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Do runs f on the loop and waits for it to finish. It must not be called
// from the loop goroutine.
func (l *Loop) Do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// Run may have exited after picking up f; give it a chance to report.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.queue.Len() == 0 {
		return nil, false
	}
	return l.queue.PopFront(), true
}

// exec runs f, logging a panic instead of letting it end the loop.
func (l *Loop) exec(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	f()
}
