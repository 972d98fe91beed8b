package model

import (
	"math/big"
)

// Config defines the configuration parameters for an in-process development node.
type Config struct {
	// DataDir is the directory where the node's chain data and keystore will be stored.
	DataDir string `validate:"required"`
	// P2PPort is the port used for peer-to-peer communication.
	// The dev node never dials peers, but the p2p server still binds a listener.
	P2PPort int `validate:"gte=0"`
	// RPCPort defines the port the HTTP JSON-RPC endpoint listens on.
	RPCPort int `validate:"required,gt=0"`

	// ChainID of the development chain.
	ChainID uint64 `validate:"required"`

	// Accounts is the number of node-managed accounts created in the keystore.
	// Every account is unlocked and funded at genesis.
	Accounts int `validate:"required,gt=0"`
	// Funding is the genesis balance in wei of every account.
	Funding *big.Int `validate:"required"`
	// Passphrase protects the keystore files. Lightweight scrypt parameters are used.
	Passphrase string

	// BlockPeriod is the simulated beacon period in seconds.
	// Zero seals a block whenever transactions enter the pool instead of on a timer.
	BlockPeriod uint64
	// GasLimit of the genesis block.
	GasLimit uint64 `validate:"required,gt=0"`
}
