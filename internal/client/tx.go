package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

// txArgs is the eth_sendTransaction parameter object.
type txArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
	Data     *hexutil.Bytes  `json:"data,omitempty"`
}

// rpcTx is the subset of an eth_getTransactionByHash result the client needs.
type rpcTx struct {
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Gas         hexutil.Uint64  `json:"gas"`
	Value       *hexutil.Big    `json:"value"`
	Input       hexutil.Bytes   `json:"input"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
}

func callMsg(req model.TxRequest) ethereum.CallMsg {
	return ethereum.CallMsg{
		From:     req.From,
		To:       req.To,
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Value:    req.Value,
		Data:     req.Data,
	}
}

// EstimateGas asks the node how much gas req needs. Execution failures surface
// as a RevertError carrying the decoded reason.
func (c *Client) EstimateGas(ctx context.Context, req model.TxRequest) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, callMsg(req))
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", nodeError(err))
	}
	return gas, nil
}

// Submit hands req to the node for signing and inclusion and returns its hash.
// When req carries no gas limit the node estimate is used, scaled by the
// configured buffer. Submit does not wait for inclusion.
func (c *Client) Submit(ctx context.Context, req model.TxRequest) (common.Hash, error) {
	if req.GasLimit == 0 {
		estimated, err := c.EstimateGas(ctx, req)
		if err != nil {
			c.logger.Error().Err(err).Str("from", req.From.Hex()).Msg("gas estimation failed")
			return common.Hash{}, err
		}
		req.GasLimit = uint64(float64(estimated) * c.cfg.GasLimitBuffer)
		c.logger.Debug().Uint64("estimated", estimated).Uint64("with_buffer", req.GasLimit).Msg("gas limit calculated")
	}

	gas := hexutil.Uint64(req.GasLimit)
	args := txArgs{
		From:     req.From,
		To:       req.To,
		Gas:      &gas,
		GasPrice: (*hexutil.Big)(req.GasPrice),
		Value:    (*hexutil.Big)(req.Value),
	}
	if req.Nonce != nil {
		nonce := hexutil.Uint64(*req.Nonce)
		args.Nonce = &nonce
	}
	if len(req.Data) > 0 {
		data := hexutil.Bytes(req.Data)
		args.Data = &data
	}

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, model.EthSendTransaction, args); err != nil {
		err = nodeError(err)
		c.logger.Error().Err(err).Str("from", req.From.Hex()).Msg("failed to send transaction")
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.Info().
		Str("hash", hash.Hex()).
		Str("from", req.From.Hex()).
		Uint64("gas", req.GasLimit).
		Str("state", model.TxSubmitted.String()).
		Msg("transaction submitted")
	return hash, nil
}

// SendTransaction transfers value wei from a node-managed account and waits for
// the receipt. A sender that cannot cover the transfer fails with
// ErrInsufficientFunds, which also matches ErrTransactionReverted.
func (c *Client) SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (*model.Receipt, error) {
	hash, err := c.Submit(ctx, model.TxRequest{From: from, To: &to, Value: value})
	if err != nil {
		return nil, err
	}
	return c.WaitForReceipt(ctx, hash)
}

// WaitForReceipt polls for the receipt of hash until it is mined, the node no
// longer knows the transaction, or the receipt timeout elapses. A timeout fails
// with ErrPendingTimeout; the transaction may still be mined afterwards.
//
// A mined transaction with a failed status returns both its receipt and a
// RevertError; the revert reason is recovered by replaying the call at the
// block it was mined in.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*model.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.lookupReceipt(ctx, hash)
		switch {
		case ctx.Err() != nil:
			return nil, c.waitAborted(ctx, hash)
		case err != nil:
			return receipt, err
		case receipt != nil:
			return receipt, nil
		}

		c.logger.Debug().Str("hash", hash.Hex()).Msg("transaction pending")

		select {
		case <-ctx.Done():
			return nil, c.waitAborted(ctx, hash)
		case <-ticker.C:
		}
	}
}

func (c *Client) waitAborted(ctx context.Context, hash common.Hash) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Error().Str("hash", hash.Hex()).Msg("timed out waiting for receipt")
		return fmt.Errorf("%w: %s", model.ErrPendingTimeout, hash.Hex())
	}
	return ctx.Err()
}

// TransactionState reports where hash is in its lifecycle without waiting.
func (c *Client) TransactionState(ctx context.Context, hash common.Hash) (model.TxState, error) {
	receipt, err := c.lookupReceipt(ctx, hash)
	switch {
	case errors.Is(err, model.ErrDropped):
		return model.TxDropped, nil
	case errors.Is(err, model.ErrTransactionReverted):
		return model.TxReverted, nil
	case err != nil:
		return model.TxBuilt, err
	case receipt == nil:
		return model.TxPending, nil
	default:
		return receipt.State, nil
	}
}

// lookupReceipt returns the receipt of a mined transaction, nil for a pending
// one and ErrDropped when the node knows nothing about hash. A node still
// indexing transactions cannot tell, so hash counts as pending.
func (c *Client) lookupReceipt(ctx context.Context, hash common.Hash) (*model.Receipt, error) {
	r, err := c.eth.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		tx, err := c.transaction(ctx, hash)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			c.logger.Error().Str("hash", hash.Hex()).Msg("transaction dropped")
			return nil, fmt.Errorf("%w: %s", model.ErrDropped, hash.Hex())
		}
		return nil, nil
	}
	if indexing(err) {
		c.logger.Debug().Str("hash", hash.Hex()).Msg("node is indexing transactions")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", nodeError(err))
	}

	receipt := &model.Receipt{
		TxHash:      r.TxHash,
		Status:      r.Status,
		BlockNumber: r.BlockNumber,
		GasUsed:     r.GasUsed,
		State:       model.TxConfirmed,
	}
	if r.ContractAddress != (common.Address{}) {
		addr := r.ContractAddress
		receipt.ContractAddress = &addr
	}

	if r.Status == types.ReceiptStatusSuccessful {
		c.logger.Info().
			Str("hash", hash.Hex()).
			Str("block", r.BlockNumber.String()).
			Uint64("gas_used", r.GasUsed).
			Msg("transaction confirmed")
		return receipt, nil
	}

	receipt.State = model.TxReverted
	revert := &model.RevertError{TxHash: hash}
	if tx, err := c.transaction(ctx, hash); err == nil && tx != nil {
		c.replay(ctx, tx, r, revert)
	}
	receipt.RevertReason = revert.Reason

	c.logger.Error().
		Str("hash", hash.Hex()).
		Str("reason", revert.Reason).
		Uint64("gas_used", r.GasUsed).
		Msg("transaction reverted")
	return receipt, revert
}

// transaction fetches hash from the node, returning nil when it is unknown.
func (c *Client) transaction(ctx context.Context, hash common.Hash) (*rpcTx, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, model.EthGetTransactionByHash, hash); err != nil {
		return nil, fmt.Errorf("get transaction: %w", nodeError(err))
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var tx rpcTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("%w: decode transaction: %w", model.ErrConnection, err)
	}
	return &tx, nil
}

// replay re-executes a failed transaction as a call against the block it was
// mined in so the node reports the revert reason again.
func (c *Client) replay(ctx context.Context, tx *rpcTx, r *types.Receipt, revert *model.RevertError) {
	msg := ethereum.CallMsg{
		From:  tx.From,
		To:    tx.To,
		Gas:   uint64(tx.Gas),
		Value: (*big.Int)(tx.Value),
		Data:  tx.Input,
	}
	_, err := c.eth.CallContract(ctx, msg, r.BlockNumber)
	if err == nil {
		if r.GasUsed == uint64(tx.Gas) {
			revert.Reason = "out of gas"
		}
		return
	}

	var replayed *model.RevertError
	if errors.As(nodeError(err), &replayed) {
		revert.Reason = replayed.Reason
		revert.Data = replayed.Data
		revert.Err = err
	}
}
