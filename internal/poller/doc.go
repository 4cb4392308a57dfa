// Package poller implements the venue reachability poller.
//
// The poller:
//   - Probes every venue's REST time endpoint on a fixed interval
//   - Bounds concurrent probes
//   - Records latency and clock skew per venue
//   - Keeps the latest result per venue for the health endpoint
package poller
