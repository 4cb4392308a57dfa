// Package model defines the canonical order-book types shared by the feed.
//
// Conventions:
//   - Prices and quantities: float64 in venue units
//   - Timestamps: time.Time, venue-reported when available, local receipt otherwise
//   - Subscriptions: keyed by SubscriptionKey{Venue, Symbol}
package model
