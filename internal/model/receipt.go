package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxState is the lifecycle position of a transaction.
//
//	Built -> Submitted -> Pending -> {Confirmed | Reverted | Dropped}
//
// Dropped (never mined) and Reverted (mined, execution failed) call for different
// recovery: the former is resubmitted, the latter must be fixed first. Submitted
// transactions cannot be cancelled, only superseded by one with the same nonce.
type TxState int

const (
	TxBuilt TxState = iota
	TxSubmitted
	TxPending
	TxConfirmed
	TxReverted
	TxDropped
)

func (s TxState) String() string {
	switch s {
	case TxBuilt:
		return "built"
	case TxSubmitted:
		return "submitted"
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxReverted:
		return "reverted"
	case TxDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s TxState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Final reports whether no further transition is possible.
func (s TxState) Final() bool {
	return s == TxConfirmed || s == TxReverted || s == TxDropped
}

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	State       TxState     `json:"state"`
	Status      uint64      `json:"status"`
	BlockNumber *big.Int    `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	// ContractAddress is set for deployments only.
	ContractAddress *common.Address `json:"contract_address,omitempty"`
	// RevertReason is set when the transaction reverted and the reason could be recovered.
	RevertReason string `json:"revert_reason,omitempty"`
}

// PendingDeployment is a submitted contract creation whose receipt is not known yet.
// Address is where the contract will live once the deployment is confirmed; calls
// against it fail with ErrUnresolved until then.
type PendingDeployment struct {
	TxHash  common.Hash    `json:"tx_hash"`
	From    common.Address `json:"from"`
	Nonce   uint64         `json:"nonce"`
	Address common.Address `json:"address"`
}
