// Package loop provides the single event loop that owns all feed state, and
// the timer abstraction built on it.
//
// Every state mutation in the feed runs as a function posted to one Loop.
// Goroutines that do blocking I/O (dialing, reading sockets, REST calls) post
// their results back instead of touching state directly.
//
// Timers are created through a Group. A Group tracks its live timers by name
// so an owner can cancel all of them in one call before it releases its
// state. A timer callback runs on the loop and is skipped if the timer was
// cancelled after it fired but before the loop reached it.
package loop
