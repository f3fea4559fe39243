// Package resp implements the RESP wire format.
package resp

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame is one decoded unit of the wire protocol.
//
// The concrete types are Simple, Error, Integer, Bulk, Null and Array.
// Frames are immutable once constructed; the codec copies payload bytes
// out of its input buffer.
type Frame interface {
	frame()
}

// Simple is a one-line string ("+OK\r\n").
type Simple string

// Error is a one-line error message ("-ERR ...\r\n").
type Error string

// Integer is a signed 64-bit integer (":42\r\n").
type Integer int64

// Bulk is a binary-safe, length-prefixed byte string ("$3\r\nfoo\r\n").
type Bulk []byte

// Null is the absent value. It encodes as a null bulk string ("$-1\r\n")
// and also decodes from the dedicated "_\r\n" tag.
type Null struct{}

// Array is an ordered sequence of fully-decoded frames.
type Array []Frame

func (Simple) frame()  {}
func (Error) frame()   {}
func (Integer) frame() {}
func (Bulk) frame()    {}
func (Null) frame()    {}
func (Array) frame()   {}

// Encode serializes a frame to its wire representation.
func Encode(f Frame) []byte {
	return appendFrame(nil, f)
}

func appendFrame(dst []byte, f Frame) []byte {
	switch v := f.(type) {
	case Simple:
		dst = append(dst, '+')
		dst = append(dst, v...)
	case Error:
		dst = append(dst, '-')
		dst = append(dst, v...)
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, int64(v), 10)
	case Bulk:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v...)
	case Null:
		dst = append(dst, '$', '-', '1')
	case Array:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, '\r', '\n')
		for _, elem := range v {
			dst = appendFrame(dst, elem)
		}
		return dst
	default:
		// The frame set is closed; reaching this is a programming error.
		panic(fmt.Sprintf("resp: cannot encode frame type %T", f))
	}
	return append(dst, '\r', '\n')
}

// Command builds the request frame for a command and its arguments:
// an Array of Bulk strings with the command name first.
func Command(name string, args ...[]byte) Frame {
	arr := make(Array, 0, len(args)+1)
	arr = append(arr, Bulk(name))
	for _, a := range args {
		arr = append(arr, Bulk(a))
	}
	return arr
}

// Sprint renders a frame for human display. Arrays are space-joined,
// Null renders as "(nil)".
func Sprint(f Frame) string {
	switch v := f.(type) {
	case Simple:
		return string(v)
	case Error:
		return "error: " + string(v)
	case Integer:
		return strconv.FormatInt(int64(v), 10)
	case Bulk:
		return string(v)
	case Null:
		return "(nil)"
	case Array:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = Sprint(elem)
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", f)
	}
}
