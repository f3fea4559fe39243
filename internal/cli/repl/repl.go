// Package repl provides the interactive REPL mode for nox-cli.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/noxkv/nox-go/internal/cli/connection"
	"github.com/noxkv/nox-go/internal/cli/output"
	"github.com/noxkv/nox-go/internal/resp"
)

// Runner executes one command round trip. *connection.Client satisfies
// it.
type Runner interface {
	Do(name string, args ...[]byte) (resp.Frame, error)
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	client    Runner
	completer *Completer
	history   *History
}

// New creates a new REPL bound to a client.
func New(client Runner) *REPL {
	return &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		client:    client,
		completer: NewCompleter(),
		history:   NewHistory(),
	}
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	_ = r.history.Load()
	defer func() { _ = r.history.Save() }()

	reader := bufio.NewReader(r.input)

	for {
		fmt.Fprint(r.output, "nox> ")

		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.history.Add(line)

		switch line {
		case "exit", "quit":
			return nil
		case "help":
			r.printHelp()
			continue
		}

		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
		}
	}
}

func (r *REPL) execute(line string) error {
	fields, err := tokenize(line)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToUpper(fields[0])
	if name == "SUBSCRIBE" || name == "UNSUBSCRIBE" {
		return fmt.Errorf("subscriber mode is not available here, use 'nox-cli subscribe'")
	}

	args := make([][]byte, len(fields)-1)
	for i, f := range fields[1:] {
		args[i] = []byte(f)
	}

	f, err := r.client.Do(name, args...)
	if err != nil {
		var se connection.ServerError
		if errors.As(err, &se) {
			fmt.Fprintf(r.output, "(error) %s\n", string(se))
			return nil
		}
		return err
	}

	fmt.Fprintln(r.output, output.Reply(f))
	return nil
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.output, `commands:
  GET key
  SET key value [EX seconds | PX millis]
  DEL key [key ...]
  PUBLISH channel message
  PING [message]
  help, exit, quit
`)
}

// tokenize splits a command line into fields. Double quotes group
// fields with spaces; backslash escapes inside quotes.
func tokenize(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	started := false

	for _, r := range line {
		switch {
		case escaped:
			switch r {
			case 'n':
				cur.WriteByte('\n')
			case 't':
				cur.WriteByte('\t')
			default:
				cur.WriteRune(r)
			}
			escaped = false
		case inQuotes && r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
			started = true
		case !inQuotes && (r == ' ' || r == '\t'):
			if started || cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}

	if inQuotes || escaped {
		return nil, fmt.Errorf("unterminated quote")
	}
	if started || cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
