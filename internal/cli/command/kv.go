// Package command provides CLI command definitions for nox-cli.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/noxkv/nox-go/internal/cli/output"
)

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read the value of a key",
		ArgsUsage: "<key>",
		Action:    getAction,
	}
}

func getAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: get <key>")
	}

	client, err := DialClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	f, err := client.Do("GET", []byte(c.Args().Get(0)))
	if err != nil {
		return err
	}
	fmt.Println(output.Reply(f))
	return nil
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Write a key, optionally with a time to live",
		ArgsUsage: "<key> <value>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "ex",
				Usage: "expire after `SECONDS`",
			},
			&cli.Int64Flag{
				Name:  "px",
				Usage: "expire after `MILLIS`",
			},
		},
		Action: setAction,
	}
}

func setAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: set <key> <value>")
	}

	ttl, hasTTL, err := parseTTL(c)
	if err != nil {
		return err
	}

	client, err := DialClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	key, value := c.Args().Get(0), []byte(c.Args().Get(1))
	if hasTTL {
		err = client.SetTTL(key, value, ttl)
	} else {
		err = client.Set(key, value)
	}
	if err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

// DelCommand returns the del command.
func DelCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "Remove one or more keys",
		ArgsUsage: "<key>...",
		Action:    delAction,
	}
}

func delAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: del <key>...")
	}

	client, err := DialClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.Del(c.Args().Slice()...)
	if err != nil {
		return err
	}
	fmt.Printf("(integer) %d\n", n)
	return nil
}
