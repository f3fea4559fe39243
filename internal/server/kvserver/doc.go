// Package kvserver provides the TCP wire protocol server for nox.
//
// It accepts RESP framed connections, dispatches key-value and
// publish/subscribe commands against the shared store and the pub/sub
// registry, and manages per-connection lifecycle: a bounded connection
// limit, an optional per-address rate limit, subscriber mode, and
// graceful shutdown.
//
// Supported commands:
//   - PING, QUIT
//   - GET, SET, DEL
//   - PUBLISH, SUBSCRIBE, UNSUBSCRIBE
package kvserver
