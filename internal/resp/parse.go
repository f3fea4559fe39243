// Package resp implements the RESP wire format.
package resp

import (
	"bytes"
	"errors"
	"fmt"
)

// Protocol limits to prevent resource exhaustion from hostile peers.
const (
	// MaxArrayLen limits the number of elements in an array frame.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512KB).
	MaxBulkLen = 512 * 1024

	// MaxLineLen limits the length of a single protocol line (4KB).
	MaxLineLen = 4 * 1024
)

var (
	// ErrProtocol reports bytes that violate the wire format.
	ErrProtocol = errors.New("resp: protocol error")

	// ErrLimitExceeded reports a frame that exceeds a protocol limit.
	ErrLimitExceeded = errors.New("resp: limit exceeded")

	// ErrIncomplete reports that the buffer ends mid-frame. The caller
	// should read more bytes and retry; it is not a protocol violation.
	ErrIncomplete = errors.New("resp: incomplete frame")
)

// Parse decodes exactly one frame from the start of buf without
// consuming bytes beyond it. It returns the frame and the number of
// bytes consumed. When buf holds only part of a frame it returns
// ErrIncomplete and the caller retries with more data.
//
// A bare command line without a type tag ("PING\r\n") is accepted as an
// inline command and decodes to an Array of Bulk strings.
func Parse(buf []byte) (Frame, int, error) {
	d := decoder{buf: buf}
	f, err := d.frame()
	if err != nil {
		return nil, 0, err
	}
	return f, d.pos, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) frame() (Frame, error) {
	if d.pos >= len(d.buf) {
		return nil, ErrIncomplete
	}
	tag := d.buf[d.pos]

	switch tag {
	case '+':
		d.pos++
		line, err := d.line()
		if err != nil {
			return nil, err
		}
		return Simple(line), nil

	case '-':
		d.pos++
		line, err := d.line()
		if err != nil {
			return nil, err
		}
		return Error(line), nil

	case ':':
		d.pos++
		n, err := d.decimal()
		if err != nil {
			return nil, err
		}
		return Integer(n), nil

	case '$':
		d.pos++
		return d.bulk()

	case '*':
		d.pos++
		return d.array()

	case '_':
		// Dedicated null tag: "_\r\n".
		d.pos++
		line, err := d.line()
		if err != nil {
			return nil, err
		}
		if len(line) != 0 {
			return nil, fmt.Errorf("%w: invalid null frame", ErrProtocol)
		}
		return Null{}, nil

	default:
		if isInlineStart(tag) {
			return d.inline()
		}
		return nil, fmt.Errorf("%w: invalid frame type byte %q", ErrProtocol, tag)
	}
}

func (d *decoder) bulk() (Frame, error) {
	n, err := d.decimal()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return Null{}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid bulk length %d", ErrProtocol, n)
	}
	if n > MaxBulkLen {
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	need := int(n) + 2 // payload plus CRLF
	if len(d.buf)-d.pos < need {
		return nil, ErrIncomplete
	}
	payload := d.buf[d.pos : d.pos+int(n)]
	if d.buf[d.pos+int(n)] != '\r' || d.buf[d.pos+int(n)+1] != '\n' {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	d.pos += need

	out := make(Bulk, len(payload))
	copy(out, payload)
	return out, nil
}

func (d *decoder) array() (Frame, error) {
	n, err := d.decimal()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return Null{}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid array length %d", ErrProtocol, n)
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make(Array, 0, n)
	for i := int64(0); i < n; i++ {
		elem, err := d.frame()
		if err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
	return out, nil
}

// inline decodes a bare command line into an Array of Bulk strings.
func (d *decoder) inline() (Frame, error) {
	line, err := d.line()
	if err != nil {
		return nil, err
	}
	fields := bytes.Fields(line)
	out := make(Array, 0, len(fields))
	for _, f := range fields {
		arg := make(Bulk, len(f))
		copy(arg, f)
		out = append(out, arg)
	}
	return out, nil
}

// line consumes bytes up to and including the next CRLF and returns the
// bytes before it. The returned slice aliases the decode buffer.
func (d *decoder) line() ([]byte, error) {
	rest := d.buf[d.pos:]
	idx := bytes.Index(rest, []byte("\r\n"))
	if idx < 0 {
		if len(rest) > MaxLineLen {
			return nil, fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, MaxLineLen)
		}
		return nil, ErrIncomplete
	}
	if idx > MaxLineLen {
		return nil, fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, MaxLineLen)
	}
	d.pos += idx + 2
	return rest[:idx], nil
}

// decimal consumes one line and parses it as a signed decimal integer,
// rejecting any non-digit byte.
func (d *decoder) decimal() (int64, error) {
	line, err := d.line()
	if err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, fmt.Errorf("%w: empty integer", ErrProtocol)
	}

	neg := false
	if line[0] == '-' {
		neg = true
		line = line[1:]
		if len(line) == 0 {
			return 0, fmt.Errorf("%w: empty integer", ErrProtocol)
		}
	}

	var n int64
	for _, b := range line {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w: invalid integer byte %q", ErrProtocol, b)
		}
		n = n*10 + int64(b-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

// isInlineStart reports whether a byte can begin an inline command.
// Only ASCII letters qualify; anything else is a framing error.
func isInlineStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
