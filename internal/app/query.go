package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-eth-devkit/internal/client"
	"github.com/thep2p/go-eth-devkit/internal/model"
	"github.com/thep2p/go-eth-devkit/internal/wei"
	"github.com/urfave/cli/v2"
)

func unitFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "unit",
		Usage: "unit of amounts (wei, kwei, mwei, gwei, szabo, finney, ether)",
		Value: string(wei.Ether),
	}
}

func (e *env) connectedCommand() *cli.Command {
	return &cli.Command{
		Name:  "connected",
		Usage: "Report whether the node answers",
		Action: func(c *cli.Context) error {
			cl, err := e.dial(c)
			if err != nil {
				if errors.Is(err, model.ErrConnection) {
					printf(c, "false\n")
					return cli.Exit("", 1)
				}
				return err
			}
			defer cl.Close()

			ok := cl.IsConnected(c.Context)
			printf(c, "%t\n", ok)
			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func (e *env) accountsCommand() *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "List the node-managed accounts",
		Action: func(c *cli.Context) error {
			cl, err := e.dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			accounts, err := cl.Accounts(c.Context)
			if err != nil {
				return err
			}
			for _, a := range accounts {
				printf(c, "%s\n", a.Hex())
			}
			return nil
		},
	}
}

func (e *env) balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Print the balance of an address",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{unitFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("balance takes exactly one address", 2)
			}
			// reject malformed input before touching the network
			addr, err := client.ParseAddress(c.Args().First())
			if err != nil {
				return err
			}
			unit := wei.Unit(c.String("unit"))
			if _, err := wei.Decimals(unit); err != nil {
				return err
			}

			cl, err := e.dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			bal, err := cl.BalanceOf(c.Context, addr)
			if err != nil {
				return err
			}
			s, err := wei.FromWei(bal, unit)
			if err != nil {
				return err
			}
			printf(c, "%s\n", s)
			return nil
		},
	}
}

func (e *env) gasPriceCommand() *cli.Command {
	return &cli.Command{
		Name:  "gas-price",
		Usage: "Print the node's gas price estimate",
		Flags: []cli.Flag{&cli.StringFlag{Name: "unit", Usage: "unit of the price", Value: string(wei.Wei)}},
		Action: func(c *cli.Context) error {
			cl, err := e.dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			price, err := cl.GasPrice(c.Context)
			if err != nil {
				return err
			}
			s, err := wei.FromWei(price, wei.Unit(c.String("unit")))
			if err != nil {
				return err
			}
			printf(c, "%s\n", s)
			return nil
		},
	}
}

func toWeiCommand() *cli.Command {
	return &cli.Command{
		Name:      "to-wei",
		Usage:     "Convert an amount to wei",
		ArgsUsage: "<amount> [unit]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return cli.Exit("to-wei takes an amount and an optional unit", 2)
			}
			unit := wei.Ether
			if c.NArg() == 2 {
				unit = wei.Unit(c.Args().Get(1))
			}
			v, err := wei.ToWei(c.Args().First(), unit)
			if err != nil {
				return err
			}
			printf(c, "%s\n", v.String())
			return nil
		},
	}
}

func fromWeiCommand() *cli.Command {
	return &cli.Command{
		Name:      "from-wei",
		Usage:     "Convert a wei amount to another unit",
		ArgsUsage: "<wei> [unit]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return cli.Exit("from-wei takes an amount and an optional unit", 2)
			}
			unit := wei.Ether
			if c.NArg() == 2 {
				unit = wei.Unit(c.Args().Get(1))
			}
			v, err := wei.ToWei(c.Args().First(), wei.Wei)
			if err != nil {
				return err
			}
			s, err := wei.FromWei(v, unit)
			if err != nil {
				return err
			}
			printf(c, "%s\n", s)
			return nil
		},
	}
}

func (e *env) receiptCommand() *cli.Command {
	return &cli.Command{
		Name:      "receipt",
		Usage:     "Print the state of a transaction and its receipt once mined",
		ArgsUsage: "<tx hash>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "wait", Usage: "wait for a pending transaction to be mined"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("receipt takes exactly one transaction hash", 2)
			}
			raw, err := hexutil.Decode(c.Args().First())
			if err != nil || len(raw) != 32 {
				return fmt.Errorf("invalid transaction hash %q", c.Args().First())
			}

			cl, err := e.dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			hash := common.BytesToHash(raw)
			state, err := cl.TransactionState(c.Context, hash)
			if err != nil {
				return err
			}
			if (state == model.TxPending && !c.Bool("wait")) || state == model.TxDropped {
				printf(c, "%s\n", state)
				return nil
			}

			receipt, err := cl.WaitForReceipt(c.Context, hash)
			if receipt == nil {
				return err
			}
			if perr := printJSON(c, receipt); perr != nil {
				return perr
			}
			return err
		},
	}
}

func printJSON(c *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	printf(c, "%s\n", out)
	return nil
}
