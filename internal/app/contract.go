package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/thep2p/go-eth-devkit/internal/client"
	"github.com/thep2p/go-eth-devkit/internal/contract"
	"github.com/thep2p/go-eth-devkit/internal/contracts"
	"github.com/thep2p/go-eth-devkit/internal/model"
	"github.com/urfave/cli/v2"
)

// artifactFlags select where the contract ABI and bytecode come from.
func artifactFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "artifact", Usage: "artifact JSON file (abi and bytecode)"},
		&cli.StringFlag{Name: "sol", Usage: "Solidity source to compile with solc"},
		&cli.BoolFlag{Name: "faucet", Usage: "use the bundled Faucet contract"},
		contractFlag(),
	}
}

func contractFlag() cli.Flag {
	return &cli.StringFlag{Name: "contract", Usage: "contract name inside the Solidity source"}
}

func fromFlag() cli.Flag {
	return &cli.StringFlag{Name: "from", Usage: "sending account, defaults to the first node account"}
}

func addressFlag() cli.Flag {
	return &cli.StringFlag{Name: "address", Usage: "contract address", Required: true}
}

func abiFlag() cli.Flag {
	return &cli.StringFlag{Name: "abi", Usage: "file holding the contract ABI JSON"}
}

// loadArtifact resolves --artifact, --sol or --faucet.
func loadArtifact(ctx context.Context, c *cli.Context) (model.Artifact, error) {
	switch {
	case c.Bool("faucet"):
		return contracts.FaucetArtifact(), nil
	case c.String("artifact") != "":
		return contracts.LoadArtifact(c.String("artifact"))
	case c.String("sol") != "":
		return contracts.GenerateAbiAndBin(ctx, c.String("sol"), c.String("contract"))
	default:
		return model.Artifact{}, errors.New("one of --artifact, --sol or --faucet is required")
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile a Solidity file into an artifact",
		ArgsUsage: "<file.sol>",
		Flags: []cli.Flag{
			contractFlag(),
			&cli.StringFlag{Name: "out", Usage: "write the artifact to this file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("compile takes exactly one Solidity file", 2)
			}
			art, err := contracts.GenerateAbiAndBin(c.Context, c.Args().First(), c.String("contract"))
			if err != nil {
				return err
			}
			if out := c.String("out"); out != "" {
				if err := contracts.SaveArtifact(out, art); err != nil {
					return err
				}
				printf(c, "%s\n", out)
				return nil
			}
			raw, err := contracts.EncodeArtifact(art)
			if err != nil {
				return err
			}
			printf(c, "%s\n", raw)
			return nil
		},
	}
}

func (e *env) deployCommand() *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "Deploy a contract from a node-managed account",
		ArgsUsage: "[constructor args...]",
		Flags: append(artifactFlags(),
			fromFlag(),
			&cli.BoolFlag{Name: "no-wait", Usage: "print the pending deployment without waiting for its receipt"},
		),
		Action: func(c *cli.Context) error {
			art, err := loadArtifact(c.Context, c)
			if err != nil {
				return err
			}
			parsed, err := abi.JSON(strings.NewReader(art.ABI))
			if err != nil {
				return fmt.Errorf("%w: %w", model.ErrInvalidABI, err)
			}
			args, err := contract.CoerceArgs(parsed.Constructor, c.Args().Slice())
			if err != nil {
				return err
			}
			// encode once locally so bad artifacts fail before dialing
			if _, err := client.DeploymentData(art, args...); err != nil {
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

			if c.Bool("no-wait") {
				pending, err := cl.SubmitDeployment(c.Context, art, from, args...)
				if err != nil {
					return err
				}
				return printJSON(c, pending)
			}

			receipt, err := cl.DeployContract(c.Context, art, from, args...)
			if receipt != nil {
				if perr := printJSON(c, receipt); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

// invocation is a contract method call parsed from the command line.
type invocation struct {
	address common.Address
	abi     string
	name    string
	args    []interface{}
}

// parseInvocation reads --address, the ABI source and the positional method
// arguments, and checks them against the ABI without touching the network.
func parseInvocation(ctx context.Context, c *cli.Context) (*invocation, error) {
	addr, err := client.ParseAddress(c.String("address"))
	if err != nil {
		return nil, err
	}
	if c.NArg() < 1 {
		return nil, cli.Exit("a method name is required", 2)
	}
	art, err := loadABI(ctx, c)
	if err != nil {
		return nil, err
	}
	p, err := contract.Bind(addr, art.ABI, nil)
	if err != nil {
		return nil, err
	}

	name := c.Args().First()
	m, err := p.Method(name)
	if err != nil {
		return nil, err
	}
	args, err := contract.CoerceArgs(m.ABI, c.Args().Tail())
	if err != nil {
		return nil, err
	}
	if _, err := p.Pack(name, args...); err != nil {
		return nil, err
	}
	return &invocation{address: addr, abi: art.ABI, name: name, args: args}, nil
}

func (inv *invocation) bind(backend contract.Backend) (*contract.Proxy, error) {
	return contract.Bind(inv.address, inv.abi, backend)
}

// loadABI is loadArtifact that also accepts a bare ABI file through --abi.
func loadABI(ctx context.Context, c *cli.Context) (model.Artifact, error) {
	if path := c.String("abi"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return model.Artifact{}, fmt.Errorf("read abi: %w", err)
		}
		return model.Artifact{ABI: string(raw)}, nil
	}
	return loadArtifact(ctx, c)
}

func (e *env) callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Invoke a contract method as a read-only call",
		ArgsUsage: "<method> [args...]",
		Flags:     append(artifactFlags(), addressFlag(), abiFlag()),
		Action: func(c *cli.Context) error {
			inv, err := parseInvocation(c.Context, c)
			if err != nil {
				return err
			}

			cl, err := e.dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			p, err := inv.bind(cl)
			if err != nil {
				return err
			}
			out, err := p.Call(c.Context, inv.name, inv.args...)
			if err != nil {
				return err
			}
			for _, v := range out {
				printf(c, "%s\n", contract.FormatValue(v))
			}
			return nil
		},
	}
}

func (e *env) transactCommand() *cli.Command {
	return &cli.Command{
		Name:      "transact",
		Usage:     "Invoke a contract method as a transaction and wait for its receipt",
		ArgsUsage: "<method> [args...]",
		Flags: append(artifactFlags(),
			addressFlag(), abiFlag(), fromFlag(),
			&cli.StringFlag{Name: "value", Usage: "amount to send with the call"},
			unitFlag(),
			&cli.Uint64Flag{Name: "gas-limit", Usage: "gas limit, estimated by the node when unset"},
		),
		Action: func(c *cli.Context) error {
			inv, err := parseInvocation(c.Context, c)
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
			p, err := inv.bind(cl)
			if err != nil {
				return err
			}

			receipt, err := p.Transact(c.Context, contract.TransactOpts{
				From:     from,
				Value:    value,
				GasLimit: c.Uint64("gas-limit"),
			}, inv.name, inv.args...)
			if receipt != nil {
				if perr := printJSON(c, receipt); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}
