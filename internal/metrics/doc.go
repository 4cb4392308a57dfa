// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Frames received and frames dropped as malformed, per venue
//   - Deliveries by kind (first load, throttled, fallback) and discarded updates
//   - Session state and live connected flag per venue
//   - Active subscriptions
//   - REST probe latency and journal write outcomes
//
// All recording methods are safe to call on a nil *Metrics.
package metrics
