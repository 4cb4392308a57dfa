// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Keeps at most one WebSocket session per venue
//   - Drives each session through Idle, Connecting, Live and Closed
//   - Bounds every dial by the venue's connect timeout
//   - Hands inbound frames to the venue adapter on the event loop
//   - Owns the per-venue connected flag reported by the venue catalog
//
// Sessions are never reconnected automatically. A caller reconnects by
// subscribing again.
package connection
