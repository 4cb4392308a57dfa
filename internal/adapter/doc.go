// Package adapter implements the per-venue protocol adapters.
//
// An Adapter drives the handshake for one streaming session and translates
// each inbound frame into a model.RawLevelSet, a control action, or nothing.
// Adapters register themselves by venue ID from init(); the connection
// manager looks them up by ID and never branches on the venue itself.
//
// Supported venues:
//   - okx: books channel, string levels
//   - bybit: orderbook.50 topic, application-level ping/pong
//   - deribit: JSON-RPC 2.0, instrument discovery, snapshot re-fetch on change
package adapter
