// Package writer implements the lifecycle journal.
//
// JournalWriter takes LifecycleEvents from the event loop without blocking it
// and batch-inserts them into the feed_events table. Inserts are append-only
// and idempotent on the event ID. Only session and subscription transitions
// are recorded; order books are never written.
package writer
