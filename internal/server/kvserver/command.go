// Package kvserver provides the TCP wire protocol server.
package kvserver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noxkv/nox-go/internal/resp"
)

// CommandError is a per-command failure reported to the client as an
// Error frame. It never closes the connection.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string { return e.Message }

func commandErrorf(format string, args ...any) error {
	return &CommandError{Message: fmt.Sprintf(format, args...)}
}

func wrongArgs(name string) error {
	return commandErrorf("wrong number of arguments for '%s' command", name)
}

// Command is a parsed client request.
type Command interface {
	// Name returns the lowercase command name, used as a metrics label.
	Name() string
}

// Get reads one key.
type Get struct {
	Key string
}

func (Get) Name() string { return "get" }

// Set writes one key, optionally with a time to live.
type Set struct {
	Key   string
	Value []byte

	// TTL is the requested time to live. Valid only when HasTTL is set;
	// zero or negative means expire immediately.
	TTL    time.Duration
	HasTTL bool
}

func (Set) Name() string { return "set" }

// Del removes keys.
type Del struct {
	Keys []string
}

func (Del) Name() string { return "del" }

// Publish sends a payload to every subscriber of a channel.
type Publish struct {
	Channel string
	Payload []byte
}

func (Publish) Name() string { return "publish" }

// Subscribe adds the connection to one or more channels.
type Subscribe struct {
	Channels []string
}

func (Subscribe) Name() string { return "subscribe" }

// Unsubscribe removes the connection from the named channels, or from
// every channel when none are named.
type Unsubscribe struct {
	Channels []string
}

func (Unsubscribe) Name() string { return "unsubscribe" }

// Ping checks liveness, echoing an optional message.
type Ping struct {
	Message []byte
}

func (Ping) Name() string { return "ping" }

// Quit asks the server to close the connection after replying.
type Quit struct{}

func (Quit) Name() string { return "quit" }

// Unknown is any command name the server does not implement.
type Unknown struct {
	Cmd string
}

func (Unknown) Name() string { return "unknown" }

// ParseCommand turns a request frame into a typed command. A
// *CommandError return means the request was framed correctly but is
// not a valid command; the caller reports it and keeps the connection.
func ParseCommand(f resp.Frame) (Command, error) {
	args, err := resp.NewArgs(f)
	if err != nil {
		return nil, commandErrorf("expected array of bulk strings")
	}

	name, err := args.NextString()
	if err != nil {
		return nil, commandErrorf("empty command")
	}

	switch strings.ToUpper(name) {
	case "GET":
		return parseGet(args)
	case "SET":
		return parseSet(args)
	case "DEL":
		return parseDel(args)
	case "PUBLISH":
		return parsePublish(args)
	case "SUBSCRIBE":
		return parseSubscribe(args)
	case "UNSUBSCRIBE":
		return parseUnsubscribe(args)
	case "PING":
		return parsePing(args)
	case "QUIT":
		if err := args.Finish(); err != nil {
			return nil, wrongArgs("QUIT")
		}
		return Quit{}, nil
	default:
		return Unknown{Cmd: name}, nil
	}
}

func parseGet(args *resp.Args) (Command, error) {
	key, err := args.NextString()
	if err != nil {
		return nil, wrongArgs("GET")
	}
	if err := args.Finish(); err != nil {
		return nil, wrongArgs("GET")
	}
	return Get{Key: key}, nil
}

func parseSet(args *resp.Args) (Command, error) {
	key, err := args.NextString()
	if err != nil {
		return nil, wrongArgs("SET")
	}
	value, err := args.NextBytes()
	if err != nil {
		return nil, wrongArgs("SET")
	}

	cmd := Set{Key: key, Value: value}

	opt, err := args.NextString()
	if errors.Is(err, resp.ErrNoMoreArgs) {
		return cmd, nil
	}
	if err != nil {
		return nil, commandErrorf("syntax error")
	}

	var unit time.Duration
	switch strings.ToUpper(opt) {
	case "EX":
		unit = time.Second
	case "PX":
		unit = time.Millisecond
	default:
		return nil, commandErrorf("syntax error")
	}

	n, err := args.NextInt()
	if err != nil {
		return nil, commandErrorf("value is not an integer or out of range")
	}
	if err := args.Finish(); err != nil {
		return nil, commandErrorf("syntax error")
	}

	cmd.TTL = time.Duration(n) * unit
	cmd.HasTTL = true
	return cmd, nil
}

func parseDel(args *resp.Args) (Command, error) {
	var keys []string
	for {
		key, err := args.NextString()
		if errors.Is(err, resp.ErrNoMoreArgs) {
			break
		}
		if err != nil {
			return nil, wrongArgs("DEL")
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, wrongArgs("DEL")
	}
	return Del{Keys: keys}, nil
}

func parsePublish(args *resp.Args) (Command, error) {
	channel, err := args.NextString()
	if err != nil {
		return nil, wrongArgs("PUBLISH")
	}
	payload, err := args.NextBytes()
	if err != nil {
		return nil, wrongArgs("PUBLISH")
	}
	if err := args.Finish(); err != nil {
		return nil, wrongArgs("PUBLISH")
	}
	return Publish{Channel: channel, Payload: payload}, nil
}

func parseSubscribe(args *resp.Args) (Command, error) {
	var channels []string
	for {
		channel, err := args.NextString()
		if errors.Is(err, resp.ErrNoMoreArgs) {
			break
		}
		if err != nil {
			return nil, wrongArgs("SUBSCRIBE")
		}
		channels = append(channels, channel)
	}
	if len(channels) == 0 {
		return nil, wrongArgs("SUBSCRIBE")
	}
	return Subscribe{Channels: channels}, nil
}

func parseUnsubscribe(args *resp.Args) (Command, error) {
	var channels []string
	for {
		channel, err := args.NextString()
		if errors.Is(err, resp.ErrNoMoreArgs) {
			break
		}
		if err != nil {
			return nil, wrongArgs("UNSUBSCRIBE")
		}
		channels = append(channels, channel)
	}
	return Unsubscribe{Channels: channels}, nil
}

func parsePing(args *resp.Args) (Command, error) {
	msg, err := args.NextBytes()
	if errors.Is(err, resp.ErrNoMoreArgs) {
		return Ping{}, nil
	}
	if err != nil {
		return nil, wrongArgs("PING")
	}
	if err := args.Finish(); err != nil {
		return nil, wrongArgs("PING")
	}
	return Ping{Message: msg}, nil
}
