package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is a transaction in the Built state. The node signs it with the
// account named by From, which must be one of the node-managed accounts.
type TxRequest struct {
	From common.Address
	// To is nil for contract creation.
	To    *common.Address
	Value *big.Int
	Data  []byte
	// GasLimit is estimated by the node when zero.
	GasLimit uint64
	// GasPrice is left to the node when nil.
	GasPrice *big.Int
	// Nonce is assigned by the node when nil.
	Nonce *uint64
}
