// Package book implements depth reconciliation and change detection.
//
// Reconcile turns a possibly thin or noisy RawLevelSet into a full-depth
// OrderBook: invalid levels are dropped, missing depth is backfilled from the
// previous book and then from synthetic tail levels spaced by a tick derived
// from the price magnitude. Synthetic levels are not tradable; they exist so
// consumers always receive MaxDepth levels per side.
//
// IsSignificantChange gates delivery on top-of-book movement and on changes
// to the first few price rungs.
package book
