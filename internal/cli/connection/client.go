// Package connection provides the nox wire protocol client.
package connection

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/noxkv/nox-go/internal/resp"
)

// DefaultTimeout bounds each command round trip.
const DefaultTimeout = 30 * time.Second

// ServerError is an Error frame returned by the server.
type ServerError string

func (e ServerError) Error() string { return string(e) }

// Client is a wire protocol client for request/response commands.
type Client struct {
	conn    net.Conn
	rc      *resp.Conn
	timeout time.Duration
}

// Dial connects to a nox server.
func Dial(addr string) (*Client, error) {
	return DialTimeout(addr, DefaultTimeout)
}

// DialTimeout connects with an explicit dial and per-command timeout.
func DialTimeout(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, rc: resp.NewConn(conn), timeout: timeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one command and returns the reply frame. Error frames are
// returned as a ServerError.
func (c *Client) Do(name string, args ...[]byte) (resp.Frame, error) {
	if err := c.send(name, args...); err != nil {
		return nil, err
	}
	return c.recv()
}

func (c *Client) send(name string, args ...[]byte) error {
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	if err := c.rc.WriteFrame(resp.Command(name, args...)); err != nil {
		return err
	}
	return c.rc.Flush()
}

func (c *Client) recv() (resp.Frame, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}
	f, err := c.rc.ReadFrame()
	if err != nil {
		return nil, err
	}
	if e, ok := f.(resp.Error); ok {
		return nil, ServerError(e)
	}
	return f, nil
}

// Ping checks liveness. With a nil message the server answers "PONG";
// otherwise it echoes the message.
func (c *Client) Ping(message []byte) ([]byte, error) {
	var f resp.Frame
	var err error
	if message == nil {
		f, err = c.Do("PING")
	} else {
		f, err = c.Do("PING", message)
	}
	if err != nil {
		return nil, err
	}
	switch v := f.(type) {
	case resp.Simple:
		return []byte(v), nil
	case resp.Bulk:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unexpected PING reply %T", f)
	}
}

// Get reads a key. ok is false when the key is absent or expired.
func (c *Client) Get(key string) (value []byte, ok bool, err error) {
	f, err := c.Do("GET", []byte(key))
	if err != nil {
		return nil, false, err
	}
	switch v := f.(type) {
	case resp.Bulk:
		return []byte(v), true, nil
	case resp.Null:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unexpected GET reply %T", f)
	}
}

// Set writes a key without expiry.
func (c *Client) Set(key string, value []byte) error {
	return c.expectOK(c.Do("SET", []byte(key), value))
}

// SetTTL writes a key that expires after ttl. The deadline is sent with
// millisecond precision.
func (c *Client) SetTTL(key string, value []byte, ttl time.Duration) error {
	millis := strconv.FormatInt(ttl.Milliseconds(), 10)
	return c.expectOK(c.Do("SET", []byte(key), value, []byte("PX"), []byte(millis)))
}

// Del removes keys and returns how many existed.
func (c *Client) Del(keys ...string) (int64, error) {
	args := make([][]byte, len(keys))
	for i, k := range keys {
		args[i] = []byte(k)
	}
	f, err := c.Do("DEL", args...)
	if err != nil {
		return 0, err
	}
	n, ok := f.(resp.Integer)
	if !ok {
		return 0, fmt.Errorf("unexpected DEL reply %T", f)
	}
	return int64(n), nil
}

// Publish sends a payload to a channel and returns how many subscribers
// received it.
func (c *Client) Publish(channel string, payload []byte) (int64, error) {
	f, err := c.Do("PUBLISH", []byte(channel), payload)
	if err != nil {
		return 0, err
	}
	n, ok := f.(resp.Integer)
	if !ok {
		return 0, fmt.Errorf("unexpected PUBLISH reply %T", f)
	}
	return int64(n), nil
}

func (c *Client) expectOK(f resp.Frame, err error) error {
	if err != nil {
		return err
	}
	if s, ok := f.(resp.Simple); !ok || string(s) != "OK" {
		return fmt.Errorf("unexpected reply %v", resp.Sprint(f))
	}
	return nil
}
