// Package database provides the PostgreSQL connection pool used by the
// lifecycle journal.
//
// The journal only records session and subscription transitions in the
// feed_events table. Order books are never persisted.
package database
