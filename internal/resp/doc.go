// Package resp implements the RESP wire format used between nox clients
// and the server.
//
// The package has three layers:
//
//   - Frame: a decoded protocol value (simple string, error, integer,
//     bulk string, null, array)
//   - Parse/Encode: the pure codec between byte slices and frames
//   - Conn: a framed view over a byte stream with buffered reads and
//     writes
//
// Parsing is incremental: Parse reports ErrIncomplete when the buffer
// ends mid-frame, and Conn.ReadFrame keeps reading from the stream until
// one complete frame is available. Frames split or coalesced across
// socket reads decode identically to frames delivered whole.
package resp
