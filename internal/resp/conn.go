// Package resp implements the RESP wire format.
package resp

import (
	"bufio"
	"errors"
	"io"
)

// ErrConnReset reports a stream that ended in the middle of a frame.
var ErrConnReset = errors.New("resp: connection reset mid-frame")

const readChunk = 4 * 1024

// Conn is a framed view over a byte stream.
//
// Reads go through an internal growable buffer so frames that arrive
// split or coalesced across stream reads decode correctly. Writes are
// buffered; callers flush at the end of each response so the peer never
// waits on bytes parked in the write buffer.
//
// Conn is not safe for concurrent use. The server gives each connection
// a single owning goroutine; the client is single-threaded per Conn.
type Conn struct {
	rw io.ReadWriter
	bw *bufio.Writer

	buf []byte
}

// NewConn wraps a byte stream, typically a net.Conn.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		rw: rw,
		bw: bufio.NewWriter(rw),
	}
}

// ReadFrame returns the next frame from the stream.
//
// It returns io.EOF when the peer closes the stream cleanly between
// frames, and ErrConnReset when the stream ends with a partial frame
// buffered.
func (c *Conn) ReadFrame() (Frame, error) {
	for {
		if len(c.buf) > 0 {
			f, n, err := Parse(c.buf)
			if err == nil {
				c.discard(n)
				return f, nil
			}
			if !errors.Is(err, ErrIncomplete) {
				return nil, err
			}
		}

		if err := c.fill(); err != nil {
			if err == io.EOF {
				if len(c.buf) == 0 {
					return nil, io.EOF
				}
				return nil, ErrConnReset
			}
			return nil, err
		}
	}
}

// WriteFrame encodes a frame into the write buffer. The bytes are not
// guaranteed on the wire until Flush.
func (c *Conn) WriteFrame(f Frame) error {
	_, err := c.bw.Write(Encode(f))
	return err
}

// Flush pushes buffered writes to the underlying stream.
func (c *Conn) Flush() error {
	return c.bw.Flush()
}

// Buffered reports bytes already read but not yet consumed as frames.
func (c *Conn) Buffered() int {
	return len(c.buf)
}

// fill issues one read against the stream and appends to the buffer.
func (c *Conn) fill() error {
	if cap(c.buf)-len(c.buf) < readChunk {
		grown := make([]byte, len(c.buf), len(c.buf)+readChunk)
		copy(grown, c.buf)
		c.buf = grown
	}
	n, err := c.rw.Read(c.buf[len(c.buf):cap(c.buf)])
	c.buf = c.buf[:len(c.buf)+n]
	if n > 0 {
		// Process what arrived; a trailing error resurfaces on the
		// next empty read.
		return nil
	}
	return err
}

// discard drops n consumed bytes from the front of the buffer without
// releasing its capacity, so long-lived connections do not grow the
// buffer frame by frame.
func (c *Conn) discard(n int) {
	rem := copy(c.buf, c.buf[n:])
	c.buf = c.buf[:rem]
}
