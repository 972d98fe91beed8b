package client_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-eth-devkit/internal/client"
	"github.com/thep2p/go-eth-devkit/internal/model"
	"github.com/thep2p/go-eth-devkit/internal/testutils"
	"github.com/thep2p/go-eth-devkit/internal/wei"
)

func TestSendTransaction(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(10))
	c := newClient(t, node)
	from, to := node.Accounts()[0], node.Accounts()[1]

	value, err := wei.ToWei("1.25", wei.Ether)
	require.NoError(t, err)

	receipt, err := c.SendTransaction(context.Background(), from, to, value)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.State)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	require.Nil(t, receipt.ContractAddress)
	require.NotZero(t, receipt.GasUsed)

	require.Equal(t, "8.75", mustFromWei(t, node.Balance(from)))
	require.Equal(t, "11.25", mustFromWei(t, node.Balance(to)))

	require.Contains(t, node.Requests(), model.EthSendTransaction)
}

// TestSendTransaction_InsufficientFunds checks that an overdraft is reported as both
// insufficient funds and a revert, and that no value moves.
func TestSendTransaction_InsufficientFunds(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))
	c := newClient(t, node)
	from, to := node.Accounts()[0], node.Accounts()[1]

	_, err := c.SendTransaction(context.Background(), from, to, wei.MustEther(2))
	require.ErrorIs(t, err, model.ErrInsufficientFunds)
	require.ErrorIs(t, err, model.ErrTransactionReverted)

	var revert *model.RevertError
	require.True(t, errors.As(err, &revert))
	require.True(t, revert.InsufficientFunds)

	require.Equal(t, 0, wei.MustEther(1).Cmp(node.Balance(from)))
	require.Equal(t, 0, wei.MustEther(1).Cmp(node.Balance(to)))
}

// TestSubmit_InsufficientFundsWithGasLimit skips estimation, so the rejection comes
// from eth_sendTransaction itself.
func TestSubmit_InsufficientFundsWithGasLimit(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))
	c := newClient(t, node)
	from, to := node.Accounts()[0], node.Accounts()[1]

	_, err := c.Submit(context.Background(), model.TxRequest{
		From:     from,
		To:       &to,
		Value:    wei.MustEther(5),
		GasLimit: 21_000,
	})
	require.ErrorIs(t, err, model.ErrInsufficientFunds)
	require.NotContains(t, node.Requests(), model.EthEstimateGas)
}

func TestSubmit_GasBuffer(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))
	c := newClient(t, node)
	from, to := node.Accounts()[0], node.Accounts()[1]

	estimated, err := c.EstimateGas(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(1)})
	require.NoError(t, err)
	require.Equal(t, uint64(21_000), estimated)

	hash, err := c.Submit(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(1)})
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, hash)

	receipt, err := c.WaitForReceipt(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.State)
}

func TestSubmit_UnknownAccount(t *testing.T) {
	node := testutils.NewFakeNode(t, 1, wei.MustEther(1))
	c := newClient(t, node)
	to := node.Accounts()[0]

	_, err := c.Submit(context.Background(), model.TxRequest{
		From:     testutils.RandomAddress(t),
		To:       &to,
		GasLimit: 21_000,
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrConnection)
	require.NotErrorIs(t, err, model.ErrTransactionReverted)
}

// TestWaitForReceipt_Timeout checks that a transaction that is never mined fails with
// ErrPendingTimeout and stays pending on the node.
func TestWaitForReceipt_Timeout(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))

	cfg := client.DefaultConfig(node.URL())
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ReceiptTimeout = 100 * time.Millisecond
	c, err := client.Dial(context.Background(), testutils.Logger(t), cfg)
	require.NoError(t, err)
	defer c.Close()

	node.HoldBlocks(true)
	from, to := node.Accounts()[0], node.Accounts()[1]

	hash, err := c.Submit(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(1)})
	require.NoError(t, err)

	_, err = c.WaitForReceipt(context.Background(), hash)
	require.ErrorIs(t, err, model.ErrPendingTimeout)

	state, err := c.TransactionState(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxPending, state)

	node.Mine()
	state, err = c.TransactionState(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, state)
}

func TestWaitForReceipt_ContextCanceled(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))
	c := newClient(t, node)
	node.HoldBlocks(true)
	from, to := node.Accounts()[0], node.Accounts()[1]

	hash, err := c.Submit(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(1)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = c.WaitForReceipt(ctx, hash)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, model.ErrPendingTimeout)
}

func TestWaitForReceipt_MinedWhileWaiting(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))
	c := newClient(t, node)
	node.HoldBlocks(true)
	from, to := node.Accounts()[0], node.Accounts()[1]

	hash, err := c.Submit(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(7)})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		node.Mine()
	}()

	receipt, err := c.WaitForReceipt(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.State)
	require.Equal(t, int64(7), new(big.Int).Sub(node.Balance(to), wei.MustEther(1)).Int64())
}

func TestWaitForReceipt_Dropped(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))
	c := newClient(t, node)
	node.HoldBlocks(true)
	from, to := node.Accounts()[0], node.Accounts()[1]

	hash, err := c.Submit(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(1)})
	require.NoError(t, err)
	node.Drop(hash)

	_, err = c.WaitForReceipt(context.Background(), hash)
	require.ErrorIs(t, err, model.ErrDropped)

	state, err := c.TransactionState(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxDropped, state)
}

// TestWaitForReceipt_Indexing checks that receipt lookups answered with the
// indexing error keep the transaction pending until the node catches up.
func TestWaitForReceipt_Indexing(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))
	c := newClient(t, node)
	from, to := node.Accounts()[0], node.Accounts()[1]

	hash, err := c.Submit(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(3)})
	require.NoError(t, err)

	node.IndexingPolls(3)
	state, err := c.TransactionState(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxPending, state)

	node.ResetRequests()
	receipt, err := c.WaitForReceipt(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.State)
	require.Equal(t, 3, countRequests(node, model.EthGetTransactionReceipt))
}

// TestWaitForReceipt_IndexingTimeout checks that a node that never finishes
// indexing ends in ErrPendingTimeout rather than a lookup failure.
func TestWaitForReceipt_IndexingTimeout(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(1))

	cfg := client.DefaultConfig(node.URL())
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ReceiptTimeout = 100 * time.Millisecond
	c, err := client.Dial(context.Background(), testutils.Logger(t), cfg)
	require.NoError(t, err)
	defer c.Close()

	from, to := node.Accounts()[0], node.Accounts()[1]
	hash, err := c.Submit(context.Background(), model.TxRequest{From: from, To: &to, Value: big.NewInt(1)})
	require.NoError(t, err)

	node.IndexingPolls(1_000_000)
	_, err = c.WaitForReceipt(context.Background(), hash)
	require.ErrorIs(t, err, model.ErrPendingTimeout)
	require.NotErrorIs(t, err, model.ErrConnection)
}

func countRequests(node *testutils.FakeNode, method string) int {
	n := 0
	for _, m := range node.Requests() {
		if m == method {
			n++
		}
	}
	return n
}

// TestWaitForReceipt_Reverted submits a failing withdrawal with an explicit gas limit so
// it is mined, then checks the reason is recovered from the replay.
func TestWaitForReceipt_Reverted(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(10))
	c := newClient(t, node)
	owner, stranger := node.Accounts()[0], node.Accounts()[1]

	receipt := deployFaucet(t, node, c, owner)
	faucet := *receipt.ContractAddress

	data := withdrawData(t, big.NewInt(10_000))
	hash, err := c.Submit(context.Background(), model.TxRequest{
		From:     stranger,
		To:       &faucet,
		Data:     data,
		GasLimit: 100_000,
	})
	require.NoError(t, err)

	mined, err := c.WaitForReceipt(context.Background(), hash)
	require.ErrorIs(t, err, model.ErrTransactionReverted)
	require.NotErrorIs(t, err, model.ErrInsufficientFunds)
	require.NotNil(t, mined)
	require.Equal(t, model.TxReverted, mined.State)
	require.Equal(t, types.ReceiptStatusFailed, mined.Status)
	require.Equal(t, "only owner can withdraw", mined.RevertReason)

	var revert *model.RevertError
	require.True(t, errors.As(err, &revert))
	require.Equal(t, hash, revert.TxHash)
	require.Equal(t, "only owner can withdraw", revert.Reason)

	state, err := c.TransactionState(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, model.TxReverted, state)
}

// TestEstimateGas_Revert checks that an estimate against a reverting call surfaces the reason.
func TestEstimateGas_Revert(t *testing.T) {
	node := testutils.NewFakeNode(t, 2, wei.MustEther(10))
	c := newClient(t, node)
	owner, stranger := node.Accounts()[0], node.Accounts()[1]

	receipt := deployFaucet(t, node, c, owner)
	faucet := *receipt.ContractAddress

	_, err := c.EstimateGas(context.Background(), model.TxRequest{From: stranger, To: &faucet, Data: withdrawData(t, big.NewInt(1))})
	require.ErrorIs(t, err, model.ErrTransactionReverted)

	var revert *model.RevertError
	require.True(t, errors.As(err, &revert))
	require.Equal(t, "only owner can withdraw", revert.Reason)
}

func mustFromWei(t *testing.T, v *big.Int) string {
	t.Helper()
	s, err := wei.FromWei(v, wei.Ether)
	require.NoError(t, err)
	return s
}
