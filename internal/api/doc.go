// Package api provides REST clients for the venues' public endpoints.
//
// The feed itself streams over WebSocket; REST is only used to probe that a
// venue is reachable and to measure clock skew:
//   - OKX: GET /public/time
//   - Bybit: GET /market/time
//   - Deribit: GET /public/get_time
//
// Calls are retried with jittered exponential backoff and guarded by a
// per-venue circuit breaker.
package api
