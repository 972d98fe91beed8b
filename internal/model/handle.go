package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/node"
)

// Handle represents a running development node instance.
type Handle struct {
	// instance is a reference to the active Geth node instance.
	instance *node.Node
	// accounts are the unlocked node-managed accounts, in creation order.
	accounts []common.Address
	// config holds the configuration details for the node.
	config Config
}

// NewHandle initializes and returns a new Handle for a node instance with the provided configuration.
func NewHandle(instance *node.Node, accounts []common.Address, config Config) *Handle {
	return &Handle{
		instance: instance,
		accounts: accounts,
		config:   config,
	}
}

// Close stops the node instance and releases resources.
func (h *Handle) Close() error {
	return h.instance.Close()
}

// Instance returns the underlying Geth node.
func (h *Handle) Instance() *node.Node {
	return h.instance
}

// Accounts returns the funded node-managed accounts in creation order.
func (h *Handle) Accounts() []common.Address {
	out := make([]common.Address, len(h.accounts))
	copy(out, h.accounts)
	return out
}

// DataDir returns the directory where the node's data is stored.
func (h *Handle) DataDir() string {
	return h.config.DataDir
}

// RpcPort returns the port configured for the HTTP JSON-RPC endpoint.
func (h *Handle) RpcPort() int {
	return h.config.RPCPort
}

// ChainID returns the chain identifier of the development chain.
func (h *Handle) ChainID() uint64 {
	return h.config.ChainID
}
