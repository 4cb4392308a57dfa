package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startLoop runs l until the test ends.
func startLoop(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
}

func flush(t *testing.T, l *Loop) {
	t.Helper()
	require.NoError(t, l.Do(context.Background(), func() {}))
}

func TestLoop_RunsInPostOrder(t *testing.T) {
	l := New(nil, nil)
	startLoop(t, l)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	flush(t, l)

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_ConcurrentPosters(t *testing.T) {
	l := New(nil, nil)
	startLoop(t, l)

	count := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				l.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()
	flush(t, l)

	assert.Equal(t, 2000, count)
}

func TestLoop_RecoversPanics(t *testing.T) {
	l := New(nil, nil)
	startLoop(t, l)

	l.Post(func() { panic("boom") })
	ran := false
	l.Post(func() { ran = true })
	flush(t, l)

	assert.True(t, ran, "loop should keep running after a panic")
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.Done()

	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
	assert.False(t, l.Post(func() {}))
}

func TestLoop_DoContextCancelled(t *testing.T) {
	l := New(nil, nil) // never started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, l.Do(ctx, func() {}), context.DeadlineExceeded)
}
