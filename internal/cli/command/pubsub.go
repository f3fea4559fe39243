// Package command provides CLI command definitions for nox-cli.
package command

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/urfave/cli/v2"
)

// PublishCommand returns the publish command.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Send a message to a channel",
		ArgsUsage: "<channel> <message>",
		Action:    publishAction,
	}
}

func publishAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: publish <channel> <message>")
	}

	client, err := DialClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.Publish(c.Args().Get(0), []byte(c.Args().Get(1)))
	if err != nil {
		return err
	}
	fmt.Printf("(integer) %d\n", n)
	return nil
}

// SubscribeCommand returns the subscribe command.
func SubscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Listen for messages on one or more channels",
		ArgsUsage: "<channel>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "exit after `N` messages (0 = forever)",
			},
		},
		Action: subscribeAction,
	}
}

func subscribeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: subscribe <channel>...")
	}

	client, err := DialClient(c)
	if err != nil {
		return err
	}

	sub, err := client.Subscribe(c.Args().Slice()...)
	if err != nil {
		client.Close()
		return err
	}
	defer sub.Close()

	for _, ch := range c.Args().Slice() {
		fmt.Printf("subscribed to %q\n", ch)
	}

	limit := c.Int("count")
	for received := 0; limit == 0 || received < limit; received++ {
		// Poll in short rounds so a quiet channel does not trip the
		// client timeout.
		msg, err := sub.NextMessage(time.Hour)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				received--
				continue
			}
			return err
		}
		fmt.Printf("%s: %s\n", msg.Channel, msg.Payload)
	}
	return nil
}
