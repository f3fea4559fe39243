// Package connection provides the client side of the nox wire
// protocol.
//
// Client issues request/response commands over a TCP connection.
// Subscribe converts a Client into a Subscriber, which owns the
// connection for the push-based subscriber mode and interleaves
// confirmations with message delivery.
package connection
