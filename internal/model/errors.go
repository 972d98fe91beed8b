package model

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Malformed caller input. These are detected locally and never reach the network.
var (
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidUnit      = errors.New("invalid unit")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidABI       = errors.New("invalid abi")
	ErrMethodNotFound   = errors.New("method not found")
	ErrArgumentMismatch = errors.New("argument mismatch")
)

// Transport and node-reported failures, detected only after I/O.
var (
	ErrConnection          = errors.New("connection error")
	ErrDeployment          = errors.New("deployment failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrPendingTimeout      = errors.New("transaction still pending")
	ErrDropped             = errors.New("transaction dropped")

	// ErrUnresolved is returned for calls against an address that holds no code,
	// i.e. a contract whose deployment has not been confirmed.
	ErrUnresolved = errors.New("contract address not resolved")
)

// RevertError reports a transaction or call whose execution failed on the node.
// It matches ErrTransactionReverted, and additionally ErrInsufficientFunds when the
// node rejected the transfer because the sender cannot cover it.
type RevertError struct {
	// Reason is the decoded revert string, empty when the node returned none.
	Reason string
	// Data is the raw revert payload as returned by the node.
	Data []byte
	// TxHash is set when the failure was observed on a mined transaction.
	TxHash common.Hash
	// InsufficientFunds marks node rejections caused by the sender's balance.
	InsufficientFunds bool
	// Err is the underlying node error, if any.
	Err error
}

func (e *RevertError) Error() string {
	msg := ErrTransactionReverted.Error()
	if e.InsufficientFunds {
		msg = fmt.Sprintf("%s: %s", msg, ErrInsufficientFunds)
	}
	if e.TxHash != (common.Hash{}) {
		msg = fmt.Sprintf("%s (tx %s)", msg, e.TxHash.Hex())
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is reports whether target is one of the sentinels this error stands for.
func (e *RevertError) Is(target error) bool {
	switch target {
	case ErrTransactionReverted:
		return true
	case ErrInsufficientFunds:
		return e.InsufficientFunds
	}
	return false
}

func (e *RevertError) Unwrap() error {
	return e.Err
}
