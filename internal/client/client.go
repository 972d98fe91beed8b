// Package client talks to a development node over HTTP JSON-RPC.
//
// The client keeps no session: every operation is one or more independent
// requests against the endpoint it was dialed with. Transactions are signed by
// the node using its managed accounts. Once submitted, a transaction cannot be
// withdrawn and the client never resubmits one on its own.
package client

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-eth-devkit/internal/model"
	"github.com/thep2p/go-eth-devkit/internal/wei"
)

// Client wraps the JSON-RPC endpoint of a node.
type Client struct {
	logger zerolog.Logger
	cfg    Config
	rpc    *rpc.Client
	eth    *ethclient.Client
}

// Dial validates the configuration, connects to the endpoint and probes it with
// eth_chainId. An unreachable endpoint or a malformed answer fails with ErrConnection.
func Dial(ctx context.Context, logger zerolog.Logger, cfg Config) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger = logger.With().Str("component", "rpc-client").Str("endpoint", cfg.Endpoint).Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rc, err := rpc.DialOptions(ctx, cfg.Endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", model.ErrConnection, cfg.Endpoint, err)
	}

	c := &Client{
		logger: logger,
		cfg:    cfg,
		rpc:    rc,
		eth:    ethclient.NewClient(rc),
	}

	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%w: probe %s: %w", model.ErrConnection, cfg.Endpoint, err)
	}

	logger.Info().Str("chain_id", chainID.String()).Msg("connected to node")
	return c, nil
}

// Endpoint returns the URL the client was dialed with.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// IsConnected issues a web3_clientVersion probe bounded by the probe timeout.
// It never fails; any error reads as not connected.
func (c *Client) IsConnected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	var version string
	if err := c.rpc.CallContext(ctx, &version, model.Web3ClientVersion); err != nil {
		c.logger.Debug().Err(err).Msg("liveness probe failed")
		return false
	}
	return version != ""
}

// ChainID returns the chain identifier reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", nodeError(err))
	}
	return id, nil
}

// BlockNumber returns the number of the most recent block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", nodeError(err))
	}
	return n, nil
}

// Accounts lists the node-managed accounts in the order the node reports them.
// The order is not guaranteed to be stable across node restarts.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, model.EthAccounts); err != nil {
		return nil, fmt.Errorf("list accounts: %w", nodeError(err))
	}
	return accounts, nil
}

// Balance returns the balance in wei of a hex encoded address.
// A malformed address fails with ErrInvalidAddress before any request is made.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return c.BalanceOf(ctx, addr)
}

// BalanceOf returns the balance in wei of addr at the latest block.
func (c *Client) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", nodeError(err))
	}
	return bal, nil
}

// GasPrice returns the node's current gas price estimate in wei. Two calls may
// return different values.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", nodeError(err))
	}
	return price, nil
}

// ToWei converts a decimal amount in unit to wei. It performs no I/O.
func (c *Client) ToWei(amount string, unit wei.Unit) (*big.Int, error) {
	return wei.ToWei(amount, unit)
}

// FromWei renders a wei amount in unit. It performs no I/O.
func (c *Client) FromWei(v *big.Int, unit wei.Unit) (string, error) {
	return wei.FromWei(v, unit)
}

// Code returns the runtime bytecode stored at addr, empty when no contract lives there.
func (c *Client) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("get code: %w", nodeError(err))
	}
	return code, nil
}

// CallContract executes a read-only message call at the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call: %w", nodeError(err))
	}
	return out, nil
}

// Close releases the underlying RPC client.
func (c *Client) Close() {
	c.rpc.Close()
}
