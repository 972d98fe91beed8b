// Package node runs a single in-process go-ethereum development node.
//
// The node keeps its accounts in a keystore under its data directory, unlocks
// them at startup so it can sign eth_sendTransaction requests, and funds them in
// the genesis block. Blocks are produced by geth's simulated beacon, so no
// consensus client is involved. With a zero block period a block is sealed as
// soon as transactions reach the pool.
package node

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/eth"
	"github.com/ethereum/go-ethereum/eth/catalyst"
	"github.com/ethereum/go-ethereum/eth/ethconfig"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/p2p"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

type Launcher struct {
	logger zerolog.Logger
}

func NewLauncher(logger zerolog.Logger) *Launcher {
	return &Launcher{logger: logger.With().Str("component", "node-launcher").Logger()}
}

// Launch creates the keystore accounts, builds the development genesis and
// starts the node. The returned handle owns the node.
func (l *Launcher) Launch(cfg model.Config) (*model.Handle, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	listenAddr := ""
	if cfg.P2PPort > 0 {
		listenAddr = fmt.Sprintf("127.0.0.1:%d", cfg.P2PPort)
	}

	stack, err := node.New(&node.Config{
		DataDir: cfg.DataDir,
		Name:    "devkit",
		P2P: p2p.Config{
			ListenAddr:  listenAddr,
			NoDiscovery: true,
			MaxPeers:    0,
		},
		HTTPHost:          "127.0.0.1",
		HTTPPort:          cfg.RPCPort,
		HTTPModules:       []string{"eth", "net", "web3"},
		HTTPVirtualHosts:  []string{"localhost"},
		UseLightweightKDF: true,
	})
	if err != nil {
		return nil, fmt.Errorf("new node: %w", err)
	}

	accounts, err := l.createAccounts(stack, cfg)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}

	ethCfg := ethconfig.Defaults
	ethCfg.NetworkId = cfg.ChainID
	ethCfg.Genesis = genesis(cfg, accounts)
	// the zero value is full sync; a dev node has no peer to snap sync from
	ethCfg.SyncMode = 0

	backend, err := eth.New(stack, &ethCfg)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("new eth: %w", err)
	}

	beacon, err := catalyst.NewSimulatedBeacon(cfg.BlockPeriod, backend)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("new simulated beacon: %w", err)
	}
	stack.RegisterLifecycle(beacon)
	if cfg.BlockPeriod == 0 {
		// registered after the beacon so it stops first
		stack.RegisterLifecycle(newSealer(l.logger, backend.TxPool(), beacon))
	}

	if err := stack.Start(); err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("start: %w", err)
	}

	l.logger.Info().
		Int("rpc_port", cfg.RPCPort).
		Uint64("chain_id", cfg.ChainID).
		Int("accounts", len(accounts)).
		Str("data_dir", cfg.DataDir).
		Msg("dev node started")

	return model.NewHandle(stack, accounts, cfg), nil
}

// createAccounts fills the node keystore with cfg.Accounts accounts and unlocks
// them. Accounts already present in the data directory are reused first.
func (l *Launcher) createAccounts(stack *node.Node, cfg model.Config) ([]common.Address, error) {
	ks := keystore.NewKeyStore(filepath.Join(cfg.DataDir, "keystore"), keystore.LightScryptN, keystore.LightScryptP)
	stack.AccountManager().AddBackend(ks)

	existing := ks.Accounts()
	for len(existing) < cfg.Accounts {
		acc, err := ks.NewAccount(cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("new account: %w", err)
		}
		existing = append(existing, acc)
	}

	addrs := make([]common.Address, 0, cfg.Accounts)
	for _, acc := range existing[:cfg.Accounts] {
		if err := ks.Unlock(acc, cfg.Passphrase); err != nil {
			return nil, fmt.Errorf("unlock %s: %w", acc.Address.Hex(), err)
		}
		addrs = append(addrs, acc.Address)
		l.logger.Debug().Str("address", acc.Address.Hex()).Msg("account unlocked")
	}
	return addrs, nil
}

// genesis returns the development genesis with every account funded.
func genesis(cfg model.Config, accounts []common.Address) *core.Genesis {
	g := core.DeveloperGenesisBlock(cfg.GasLimit, &accounts[0])

	chainConfig := *g.Config
	chainConfig.ChainID = new(big.Int).SetUint64(cfg.ChainID)
	g.Config = &chainConfig

	for _, addr := range accounts {
		g.Alloc[addr] = types.Account{Balance: new(big.Int).Set(cfg.Funding)}
	}
	return g
}
