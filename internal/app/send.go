package app

import (
	"github.com/thep2p/go-eth-devkit/internal/client"
	"github.com/urfave/cli/v2"
)

func (e *env) sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Transfer value from a node-managed account and wait for the receipt",
		Flags: []cli.Flag{
			fromFlag(),
			&cli.StringFlag{Name: "to", Usage: "recipient address", Required: true},
			&cli.StringFlag{Name: "value", Usage: "amount to transfer", Required: true},
			unitFlag(),
		},
		Action: func(c *cli.Context) error {
			to, err := client.ParseAddress(c.String("to"))
			if err != nil {
				return err
			}
			value, err := amount(c)
			if err != nil {
				return err
			}

			cl, err := e.dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			from, err := sender(c.Context, c, cl)
			if err != nil {
				return err
			}
			receipt, err := cl.SendTransaction(c.Context, from, to, value)
			if receipt != nil {
				if perr := printJSON(c, receipt); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}
