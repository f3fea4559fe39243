// Package command provides CLI command definitions for nox-cli.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/noxkv/nox-go/internal/cli/repl"
)

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:      "ping",
		Usage:     "Check that the server is alive",
		ArgsUsage: "[message]",
		Action:    pingAction,
	}
}

func pingAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("usage: ping [message]")
	}

	client, err := DialClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	var message []byte
	if c.NArg() == 1 {
		message = []byte(c.Args().Get(0))
	}

	reply, err := client.Ping(message)
	if err != nil {
		return err
	}
	fmt.Println(string(reply))
	return nil
}

// ReplCommand returns the interactive REPL command.
func ReplCommand() *cli.Command {
	return &cli.Command{
		Name:   "repl",
		Usage:  "Start an interactive session",
		Action: replAction,
	}
}

func replAction(c *cli.Context) error {
	client, err := DialClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	return repl.New(client).Run()
}
