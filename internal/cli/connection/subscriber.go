// Package connection provides the nox wire protocol client.
package connection

import (
	"fmt"
	"time"

	"github.com/noxkv/nox-go/internal/resp"
)

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload []byte
}

// Subscriber owns a connection in subscriber mode. It is created with
// Client.Subscribe; the underlying Client must not be used afterwards.
type Subscriber struct {
	client   *Client
	channels map[string]struct{}

	// pending holds messages that arrived interleaved with
	// subscribe/unsubscribe confirmations.
	pending []Message
}

// Subscribe puts the connection into subscriber mode. At least one
// channel is required.
func (c *Client) Subscribe(channels ...string) (*Subscriber, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("subscribe needs at least one channel")
	}

	s := &Subscriber{
		client:   c,
		channels: make(map[string]struct{}),
	}
	if err := s.Subscribe(channels...); err != nil {
		return nil, err
	}
	return s, nil
}

// Channels returns the channels currently subscribed to.
func (s *Subscriber) Channels() []string {
	out := make([]string, 0, len(s.channels))
	for name := range s.channels {
		out = append(out, name)
	}
	return out
}

// Subscribe adds channels to the subscription.
func (s *Subscriber) Subscribe(channels ...string) error {
	args := make([][]byte, len(channels))
	for i, ch := range channels {
		args[i] = []byte(ch)
	}
	if err := s.client.send("SUBSCRIBE", args...); err != nil {
		return err
	}
	return s.awaitConfirmations("subscribe", len(channels))
}

// Unsubscribe removes channels from the subscription; with no arguments
// it removes all of them.
func (s *Subscriber) Unsubscribe(channels ...string) error {
	args := make([][]byte, len(channels))
	for i, ch := range channels {
		args[i] = []byte(ch)
	}

	expected := len(channels)
	if expected == 0 {
		// The server confirms each current channel, or sends a single
		// empty confirmation when there are none.
		expected = len(s.channels)
		if expected == 0 {
			expected = 1
		}
	}

	if err := s.client.send("UNSUBSCRIBE", args...); err != nil {
		return err
	}
	return s.awaitConfirmations("unsubscribe", expected)
}

// NextMessage blocks until the next delivery. The wait is bounded by
// timeout; zero means wait with the client default.
func (s *Subscriber) NextMessage(timeout time.Duration) (Message, error) {
	if len(s.pending) > 0 {
		msg := s.pending[0]
		s.pending = s.pending[1:]
		return msg, nil
	}

	if timeout <= 0 {
		timeout = s.client.timeout
	}
	if err := s.client.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Message{}, err
	}

	for {
		f, err := s.client.rc.ReadFrame()
		if err != nil {
			return Message{}, err
		}
		if msg, ok := asMessage(f); ok {
			return msg, nil
		}
		// Stray confirmations (from a concurrent close) are skipped.
	}
}

// Close closes the underlying connection.
func (s *Subscriber) Close() error {
	return s.client.Close()
}

// awaitConfirmations reads until count subscribe/unsubscribe
// confirmations of the given kind arrived, queueing any message
// deliveries seen on the way.
func (s *Subscriber) awaitConfirmations(kind string, count int) error {
	if s.client.timeout > 0 {
		if err := s.client.conn.SetReadDeadline(time.Now().Add(s.client.timeout)); err != nil {
			return err
		}
	}

	for count > 0 {
		f, err := s.client.rc.ReadFrame()
		if err != nil {
			return err
		}
		if e, ok := f.(resp.Error); ok {
			return ServerError(e)
		}
		if msg, ok := asMessage(f); ok {
			s.pending = append(s.pending, msg)
			continue
		}

		arr, ok := f.(resp.Array)
		if !ok || len(arr) != 3 {
			return fmt.Errorf("unexpected frame %s", resp.Sprint(f))
		}
		got, ok := frameString(arr[0])
		if !ok || got != kind {
			return fmt.Errorf("expected %s confirmation, got %s", kind, resp.Sprint(f))
		}

		if name, ok := frameString(arr[1]); ok {
			if kind == "subscribe" {
				s.channels[name] = struct{}{}
			} else {
				delete(s.channels, name)
			}
		}
		count--
	}
	return nil
}

func asMessage(f resp.Frame) (Message, bool) {
	arr, ok := f.(resp.Array)
	if !ok || len(arr) != 3 {
		return Message{}, false
	}
	kind, ok := frameString(arr[0])
	if !ok || kind != "message" {
		return Message{}, false
	}
	channel, ok := frameString(arr[1])
	if !ok {
		return Message{}, false
	}
	payload, ok := arr[2].(resp.Bulk)
	if !ok {
		return Message{}, false
	}
	return Message{Channel: channel, Payload: []byte(payload)}, true
}

func frameString(f resp.Frame) (string, bool) {
	switch v := f.(type) {
	case resp.Simple:
		return string(v), true
	case resp.Bulk:
		return string(v), true
	default:
		return "", false
	}
}
