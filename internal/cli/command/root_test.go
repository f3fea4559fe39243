// Package command provides CLI command definitions for nox-cli.
package command

import (
	"flag"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

func TestApp_Commands(t *testing.T) {
	app := App()

	want := []string{"get", "set", "del", "ping", "publish", "subscribe", "repl"}
	for _, name := range want {
		if app.Command(name) == nil {
			t.Errorf("App() missing command %q", name)
		}
	}
}

func TestApp_ServerFlagDefault(t *testing.T) {
	app := App()

	for _, f := range app.Flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "server" {
			if sf.Value != "127.0.0.1:6380" {
				t.Errorf("server default = %q, want %q", sf.Value, "127.0.0.1:6380")
			}
			return
		}
	}
	t.Error("App() missing --server flag")
}

func ttlContext(t *testing.T, ex, px int64) *cli.Context {
	t.Helper()

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.Int64("ex", 0, "")
	set.Int64("px", 0, "")
	ctx := cli.NewContext(App(), set, nil)
	if ex != 0 {
		if err := ctx.Set("ex", "10"); err != nil {
			t.Fatalf("Set(ex) error = %v", err)
		}
	}
	if px != 0 {
		if err := ctx.Set("px", "250"); err != nil {
			t.Fatalf("Set(px) error = %v", err)
		}
	}
	return ctx
}

func TestParseTTL(t *testing.T) {
	ttl, has, err := parseTTL(ttlContext(t, 10, 0))
	if err != nil || !has || ttl != 10*time.Second {
		t.Errorf("parseTTL(ex=10) = %v, %v, %v; want 10s, true, nil", ttl, has, err)
	}

	ttl, has, err = parseTTL(ttlContext(t, 0, 250))
	if err != nil || !has || ttl != 250*time.Millisecond {
		t.Errorf("parseTTL(px=250) = %v, %v, %v; want 250ms, true, nil", ttl, has, err)
	}

	_, has, err = parseTTL(ttlContext(t, 0, 0))
	if err != nil || has {
		t.Errorf("parseTTL() = has %v, err %v; want false, nil", has, err)
	}

	if _, _, err := parseTTL(ttlContext(t, 10, 250)); err == nil {
		t.Error("parseTTL(ex and px) error = nil, want mutually exclusive error")
	}
}
