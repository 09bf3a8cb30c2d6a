package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pior/kvwire"
)

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a key",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("usage: kvwire get <key>")
			}

			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			client, err := dial(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			item, err := client.Get(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			if !item.Found {
				fmt.Fprintln(c.App.Writer, "(nil)")
				return nil
			}
			fmt.Fprintln(c.App.Writer, string(item.Value))
			return nil
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a value under a key",
		ArgsUsage: "<key> <value>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("usage: kvwire set <key> <value>")
			}

			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			client, err := dial(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			item := kvwire.Item{Key: c.Args().Get(0), Value: []byte(c.Args().Get(1))}
			if err := client.Set(c.Context, item); err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, kvwire.ReplyOK)
			return nil
		},
	}
}
