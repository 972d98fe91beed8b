package node

import (
	"math/big"

	"github.com/thep2p/go-eth-devkit/internal/model"
	"github.com/thep2p/go-eth-devkit/internal/wei"
)

const (
	DefaultChainID  = 1337
	DefaultAccounts = 10
	DefaultGasLimit = 30_000_000
	// DefaultPassphrase protects the throwaway keystore of a dev node.
	DefaultPassphrase = "devkit"
)

// DefaultFunding is the genesis balance of every dev account: 100 ether.
func DefaultFunding() *big.Int {
	return wei.MustEther(100)
}

// LaunchOption modifies the node configuration before launch.
type LaunchOption func(*model.Config)

// WithAccounts sets the number of funded node-managed accounts.
func WithAccounts(n int) LaunchOption {
	return func(cfg *model.Config) {
		cfg.Accounts = n
	}
}

// WithFunding sets the genesis balance in wei of every account.
func WithFunding(amount *big.Int) LaunchOption {
	return func(cfg *model.Config) {
		cfg.Funding = new(big.Int).Set(amount)
	}
}

// WithChainID overrides the chain identifier.
func WithChainID(id uint64) LaunchOption {
	return func(cfg *model.Config) {
		cfg.ChainID = id
	}
}

// WithBlockPeriod makes the node seal a block every period seconds instead of
// whenever transactions arrive.
func WithBlockPeriod(period uint64) LaunchOption {
	return func(cfg *model.Config) {
		cfg.BlockPeriod = period
	}
}

// WithRPCPort pins the HTTP JSON-RPC port instead of asking the port assigner.
func WithRPCPort(port int) LaunchOption {
	return func(cfg *model.Config) {
		cfg.RPCPort = port
	}
}

// WithPassphrase sets the keystore passphrase.
func WithPassphrase(passphrase string) LaunchOption {
	return func(cfg *model.Config) {
		cfg.Passphrase = passphrase
	}
}

// WithGasLimit sets the genesis block gas limit.
func WithGasLimit(limit uint64) LaunchOption {
	return func(cfg *model.Config) {
		cfg.GasLimit = limit
	}
}
