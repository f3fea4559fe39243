// Package resp implements the RESP wire format.
package resp

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNoMoreArgs reports that every element of the request array has been
// consumed. Commands with optional trailing arguments treat it as the
// end of the argument list rather than a failure.
var ErrNoMoreArgs = errors.New("resp: no more arguments")

// Args consumes the elements of a request Array frame in positional
// order. Requests are arrays of bulk strings; the accessors convert
// elements to the type each command expects and report a protocol error
// on a mismatch.
type Args struct {
	items Array
	pos   int
}

// NewArgs wraps a request frame. The frame must be an Array.
func NewArgs(f Frame) (*Args, error) {
	arr, ok := f.(Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrProtocol, f)
	}
	return &Args{items: arr}, nil
}

// Next returns the next raw frame.
func (a *Args) Next() (Frame, error) {
	if a.pos >= len(a.items) {
		return nil, ErrNoMoreArgs
	}
	f := a.items[a.pos]
	a.pos++
	return f, nil
}

// NextString returns the next element as a string. Simple and Bulk
// frames qualify.
func (a *Args) NextString() (string, error) {
	f, err := a.Next()
	if err != nil {
		return "", err
	}
	switch v := f.(type) {
	case Simple:
		return string(v), nil
	case Bulk:
		return string(v), nil
	default:
		return "", fmt.Errorf("%w: expected string frame, got %T", ErrProtocol, f)
	}
}

// NextBytes returns the next element as raw bytes.
func (a *Args) NextBytes() ([]byte, error) {
	f, err := a.Next()
	if err != nil {
		return nil, err
	}
	switch v := f.(type) {
	case Simple:
		return []byte(v), nil
	case Bulk:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%w: expected string frame, got %T", ErrProtocol, f)
	}
}

// NextInt returns the next element as an integer. Integer frames are
// returned directly; string frames are parsed as ASCII decimals.
func (a *Args) NextInt() (int64, error) {
	f, err := a.Next()
	if err != nil {
		return 0, err
	}
	switch v := f.(type) {
	case Integer:
		return int64(v), nil
	case Simple:
		return parseArgInt(string(v))
	case Bulk:
		return parseArgInt(string(v))
	default:
		return 0, fmt.Errorf("%w: expected integer frame, got %T", ErrProtocol, f)
	}
}

// Finish verifies that every element has been consumed.
func (a *Args) Finish() error {
	if a.pos != len(a.items) {
		return fmt.Errorf("%w: %d unexpected trailing arguments", ErrProtocol, len(a.items)-a.pos)
	}
	return nil
}

func parseArgInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer %q", ErrProtocol, s)
	}
	return n, nil
}
