// Package kvserver provides the TCP wire protocol server.
package kvserver

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/noxkv/nox-go/internal/resp"
)

func req(name string, args ...string) resp.Frame {
	arr := resp.Array{resp.Bulk(name)}
	for _, a := range args {
		arr = append(arr, resp.Bulk(a))
	}
	return arr
}

// ============================================================
// Valid commands
// ============================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		frame resp.Frame
		want  Command
	}{
		{"get", req("GET", "key"), Get{Key: "key"}},
		{"get lowercase", req("get", "key"), Get{Key: "key"}},
		{"set", req("SET", "key", "value"), Set{Key: "key", Value: []byte("value")}},
		{
			"set with ex",
			req("SET", "key", "value", "EX", "10"),
			Set{Key: "key", Value: []byte("value"), TTL: 10 * time.Second, HasTTL: true},
		},
		{
			"set with px",
			req("SET", "key", "value", "PX", "250"),
			Set{Key: "key", Value: []byte("value"), TTL: 250 * time.Millisecond, HasTTL: true},
		},
		{
			"set with ex zero",
			req("SET", "key", "value", "EX", "0"),
			Set{Key: "key", Value: []byte("value"), TTL: 0, HasTTL: true},
		},
		{
			"set with lowercase option",
			req("SET", "key", "value", "ex", "5"),
			Set{Key: "key", Value: []byte("value"), TTL: 5 * time.Second, HasTTL: true},
		},
		{"del", req("DEL", "a", "b"), Del{Keys: []string{"a", "b"}}},
		{"publish", req("PUBLISH", "ch", "payload"), Publish{Channel: "ch", Payload: []byte("payload")}},
		{"subscribe", req("SUBSCRIBE", "ch1", "ch2"), Subscribe{Channels: []string{"ch1", "ch2"}}},
		{"unsubscribe named", req("UNSUBSCRIBE", "ch1"), Unsubscribe{Channels: []string{"ch1"}}},
		{"unsubscribe all", req("UNSUBSCRIBE"), Unsubscribe{}},
		{"ping", req("PING"), Ping{}},
		{"ping with message", req("PING", "hello"), Ping{Message: []byte("hello")}},
		{"quit", req("QUIT"), Quit{}},
		{"unknown", req("FLUSHALL"), Unknown{Cmd: "FLUSHALL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.frame)
			if err != nil {
				t.Fatalf("ParseCommand() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseCommand_SetValueKeepsBytes(t *testing.T) {
	payload := []byte{0x00, 0xFF, 0x0D, 0x0A}
	frame := resp.Array{resp.Bulk("SET"), resp.Bulk("key"), resp.Bulk(payload)}

	got, err := ParseCommand(frame)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	set, ok := got.(Set)
	if !ok {
		t.Fatalf("ParseCommand() = %T, want Set", got)
	}
	if !bytes.Equal(set.Value, payload) {
		t.Errorf("Value = %v, want %v", set.Value, payload)
	}
}

// ============================================================
// Invalid commands
// ============================================================

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame resp.Frame
	}{
		{"not an array", resp.Simple("GET")},
		{"empty array", resp.Array{}},
		{"get no key", req("GET")},
		{"get trailing args", req("GET", "key", "extra")},
		{"set no value", req("SET", "key")},
		{"set bad option", req("SET", "key", "value", "XX", "10")},
		{"set option without value", req("SET", "key", "value", "EX")},
		{"set non-integer ttl", req("SET", "key", "value", "EX", "soon")},
		{"set trailing args", req("SET", "key", "value", "EX", "10", "extra")},
		{"del no keys", req("DEL")},
		{"publish no payload", req("PUBLISH", "ch")},
		{"publish trailing args", req("PUBLISH", "ch", "payload", "extra")},
		{"subscribe no channels", req("SUBSCRIBE")},
		{"ping trailing args", req("PING", "a", "b")},
		{"quit trailing args", req("QUIT", "now")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.frame)
			if err == nil {
				t.Fatal("ParseCommand() error = nil, want error")
			}
			var ce *CommandError
			if !errors.As(err, &ce) {
				t.Errorf("ParseCommand() error = %T, want *CommandError", err)
			}
		})
	}
}

func TestParseCommand_UnknownKeepsOriginalCase(t *testing.T) {
	got, err := ParseCommand(req("FlushDB"))
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	unknown, ok := got.(Unknown)
	if !ok {
		t.Fatalf("ParseCommand() = %T, want Unknown", got)
	}
	if unknown.Cmd != "FlushDB" {
		t.Errorf("Cmd = %q, want %q", unknown.Cmd, "FlushDB")
	}
}

func TestCommandNames(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Get{}, "get"},
		{Set{}, "set"},
		{Del{}, "del"},
		{Publish{}, "publish"},
		{Subscribe{}, "subscribe"},
		{Unsubscribe{}, "unsubscribe"},
		{Ping{}, "ping"},
		{Quit{}, "quit"},
		{Unknown{}, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.cmd.Name(); got != tt.want {
			t.Errorf("%T.Name() = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
