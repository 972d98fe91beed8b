// Package app assembles the devkit command line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-eth-devkit/internal/client"
	"github.com/thep2p/go-eth-devkit/internal/wei"
	"github.com/urfave/cli/v2"
)

const (
	flagRPCURL   = "rpc-url"
	flagTimeout  = "timeout"
	flagLogLevel = "log-level"
)

// LoadEnv exports the variables of a dotenv file so flags can pick them up. A
// missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// env is the state shared by the commands of one invocation.
type env struct {
	logger zerolog.Logger
}

// New creates the devkit application with all commands included.
func New() *cli.App {
	e := &env{logger: zerolog.Nop()}

	return &cli.App{
		Name:  "devkit",
		Usage: "Interact with a local Ethereum development node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagRPCURL,
				Usage:   "HTTP JSON-RPC endpoint of the node",
				Value:   client.DefaultEndpoint,
				EnvVars: []string{"DEVKIT_RPC_URL"},
			},
			&cli.DurationFlag{
				Name:    flagTimeout,
				Usage:   "how long to wait for a transaction receipt",
				Value:   client.DefaultReceiptTimeout,
				EnvVars: []string{"DEVKIT_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "log level (trace, debug, info, warn, error, disabled)",
				Value:   "warn",
				EnvVars: []string{"DEVKIT_LOG_LEVEL"},
			},
		},
		Before: e.setup,
		// exit codes are handled by the caller of Run
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			e.connectedCommand(),
			e.accountsCommand(),
			e.balanceCommand(),
			e.gasPriceCommand(),
			toWeiCommand(),
			fromWeiCommand(),
			compileCommand(),
			e.deployCommand(),
			e.sendCommand(),
			e.callCommand(),
			e.transactCommand(),
			e.receiptCommand(),
			e.devnodeCommand(),
		},
	}
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

func (e *env) setup(c *cli.Context) error {
	level, err := zerolog.ParseLevel(c.String(flagLogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	e.logger = zerolog.New(zerolog.ConsoleWriter{Out: errWriter, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// dial connects to the endpoint named by the global flags.
func (e *env) dial(c *cli.Context) (*client.Client, error) {
	cfg := client.DefaultConfig(c.String(flagRPCURL))
	cfg.ReceiptTimeout = c.Duration(flagTimeout)
	return client.Dial(c.Context, e.logger, cfg)
}

// sender resolves the --from flag, defaulting to the first node-managed account.
func sender(ctx context.Context, c *cli.Context, cl *client.Client) (common.Address, error) {
	if from := c.String("from"); from != "" {
		return client.ParseAddress(from)
	}
	accounts, err := cl.Accounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, errors.New("node manages no accounts, pass --from")
	}
	return accounts[0], nil
}

// amount parses the --value and --unit flags.
func amount(c *cli.Context) (*big.Int, error) {
	v := c.String("value")
	if v == "" {
		return nil, nil
	}
	return wei.ToWei(v, wei.Unit(c.String("unit")))
}

func printf(c *cli.Context, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(c.App.Writer, format, args...)
}
