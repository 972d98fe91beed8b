package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

// ParseAddress validates a hex encoded address without touching the network.
// Mixed-case input must carry a valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", model.ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)

	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return common.Address{}, fmt.Errorf("%w: %q has a bad checksum", model.ErrInvalidAddress, s)
		}
	}
	return addr, nil
}

// txIndexingInProgress is the error geth answers receipt lookups with while its
// transaction indexer catches up, typically right after startup.
const txIndexingInProgress = "transaction indexing is in progress"

// indexing reports whether err means the node cannot look up receipts yet.
func indexing(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok && s == txIndexingInProgress {
			return true
		}
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && strings.Contains(err.Error(), txIndexingInProgress)
}

// nodeError maps an error returned by an RPC round trip onto the error taxonomy.
// Errors carrying a JSON-RPC error object come from the node; everything else
// is a transport failure.
func nodeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "enough funds") {
		return &model.RevertError{InsufficientFunds: true, Err: err}
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data := revertData(dataErr.ErrorData()); len(data) > 0 {
			return &model.RevertError{Reason: revertReason(data, err), Data: data, Err: err}
		}
	}
	if strings.Contains(msg, "revert") {
		return &model.RevertError{Reason: revertReason(nil, err), Err: err}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrConnection, err)
}

// revertData extracts the revert payload from JSON-RPC error data.
func revertData(data interface{}) []byte {
	s, ok := data.(string)
	if !ok {
		return nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil
	}
	return b
}

// revertReason decodes an Error(string) payload, falling back to the text the
// node put after "execution reverted:" in its message.
func revertReason(data []byte, err error) string {
	if len(data) > 0 {
		if reason, uerr := abi.UnpackRevert(data); uerr == nil {
			return reason
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "reverted:"); i >= 0 {
		return strings.TrimSpace(msg[i+len("reverted:"):])
	}
	return ""
}
