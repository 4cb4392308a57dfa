package writer

import "time"

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	InstanceID    string        // Stamped on every row
	BatchSize     int           // Rows per INSERT batch
	FlushInterval time.Duration // Max time a row waits before being flushed
	BufferSize    int           // Pending events before new ones are dropped
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		InstanceID:    "bookfeed",
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// WriterMetrics counts writer outcomes.
type WriterMetrics struct {
	Received  int64 // Events accepted into the buffer
	Dropped   int64 // Events rejected because the buffer was full or the writer stopped
	Inserts   int64 // Rows written
	Conflicts int64 // Rows skipped by ON CONFLICT
	Flushes   int64 // Successful batches
	Errors    int64 // Failed batches
}
