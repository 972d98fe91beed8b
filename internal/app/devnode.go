package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thep2p/go-eth-devkit/internal/node"
	"github.com/thep2p/go-eth-devkit/internal/utils"
	"github.com/thep2p/go-eth-devkit/internal/wei"
	"github.com/urfave/cli/v2"
)

func (e *env) devnodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "devnode",
		Usage: "Run an in-process development node until interrupted",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "HTTP JSON-RPC port", Value: 8545},
			&cli.IntFlag{Name: "accounts", Usage: "number of funded accounts", Value: node.DefaultAccounts},
			&cli.StringFlag{Name: "funding", Usage: "genesis balance of every account, in ether", Value: "100"},
			&cli.Uint64Flag{Name: "chain-id", Usage: "chain identifier", Value: node.DefaultChainID},
			&cli.Uint64Flag{Name: "block-period", Usage: "seconds between blocks, 0 seals a block whenever transactions arrive"},
			&cli.StringFlag{Name: "datadir", Usage: "data directory, a temporary one is used and removed when unset"},
		},
		Action: func(c *cli.Context) error {
			funding, err := wei.ToWei(c.String("funding"), wei.Ether)
			if err != nil {
				return err
			}

			dataDir := c.String("datadir")
			if dataDir == "" {
				tmp, err := os.MkdirTemp("", "devkit-node-*")
				if err != nil {
					return fmt.Errorf("mkdir: %w", err)
				}
				defer os.RemoveAll(tmp)
				dataDir = tmp
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			manager := node.NewNodeManager(e.logger, node.NewLauncher(e.logger), dataDir, nil)
			err = manager.Start(ctx,
				node.WithRPCPort(c.Int("port")),
				node.WithAccounts(c.Int("accounts")),
				node.WithFunding(funding),
				node.WithChainID(c.Uint64("chain-id")),
				node.WithBlockPeriod(c.Uint64("block-period")),
			)
			if err != nil {
				return err
			}

			h := manager.Handle()
			printf(c, "rpc: %s\nchain id: %d\n", utils.LocalAddress(h.RpcPort()), h.ChainID())
			for _, a := range h.Accounts() {
				printf(c, "%s\n", a.Hex())
			}

			<-ctx.Done()
			manager.Wait()
			return nil
		},
	}
}
