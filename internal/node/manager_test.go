package node_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-eth-devkit/internal/client"
	"github.com/thep2p/go-eth-devkit/internal/contract"
	"github.com/thep2p/go-eth-devkit/internal/contracts"
	"github.com/thep2p/go-eth-devkit/internal/model"
	"github.com/thep2p/go-eth-devkit/internal/node"
	"github.com/thep2p/go-eth-devkit/internal/testutils"
	"github.com/thep2p/go-eth-devkit/internal/utils"
	"github.com/thep2p/go-eth-devkit/internal/wei"
)

// startNode is a helper that launches a single node and waits for RPC readiness.
func startNode(t *testing.T, opts ...node.LaunchOption) (context.Context, context.CancelFunc, *node.Manager, *model.Handle) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping dev node test in short mode")
	}

	tmp := testutils.NewTempDir(t)
	launcher := node.NewLauncher(testutils.Logger(t))
	manager := node.NewNodeManager(testutils.Logger(t), launcher, tmp.Path(), testutils.NewPortAssigner(t))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(tmp.Remove)
	t.Cleanup(func() {
		testutils.RequireCallMustReturnWithinTimeout(t, manager.Wait, node.ShutdownTimeout, "node shutdown failed")
	})

	require.NoError(t, manager.Start(ctx, opts...))
	handle := manager.Handle()
	require.NotNil(t, handle)

	testutils.RequireRpcReadyWithinTimeout(t, ctx, handle.RpcPort(), node.OperationTimeout)

	return ctx, cancel, manager, handle
}

func dial(t *testing.T, ctx context.Context, handle *model.Handle) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(utils.LocalAddress(handle.RpcPort()))
	cfg.ReceiptTimeout = 30 * time.Second
	c, err := client.Dial(ctx, testutils.Logger(t), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// TestAccountsFunded checks that the node manages the configured accounts and
// that each holds its genesis funding.
func TestAccountsFunded(t *testing.T) {
	ctx, cancel, _, handle := startNode(t, node.WithAccounts(3), node.WithFunding(wei.MustEther(7)))
	defer cancel()
	c := dial(t, ctx, handle)

	require.True(t, c.IsConnected(ctx))

	id, err := c.ChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(node.DefaultChainID), id.Uint64())

	accounts, err := c.Accounts(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, handle.Accounts(), accounts)

	for _, a := range handle.Accounts() {
		bal, err := c.BalanceOf(ctx, a)
		require.NoError(t, err)
		require.Equal(t, 0, wei.MustEther(7).Cmp(bal), a.Hex())
	}
}

// TestTransferMinesBlock sends value between node accounts and checks the node
// produced a block for it.
func TestTransferMinesBlock(t *testing.T) {
	ctx, cancel, _, handle := startNode(t, node.WithAccounts(2))
	defer cancel()
	c := dial(t, ctx, handle)
	from, to := handle.Accounts()[0], handle.Accounts()[1]

	before, err := c.BlockNumber(ctx)
	require.NoError(t, err)

	receipt, err := c.SendTransaction(ctx, from, to, wei.MustEther(1))
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.State)
	require.Greater(t, receipt.BlockNumber.Uint64(), before)

	bal, err := c.BalanceOf(ctx, to)
	require.NoError(t, err)
	require.Equal(t, 0, wei.MustEther(101).Cmp(bal))

	_, err = c.SendTransaction(ctx, from, to, wei.MustEther(1_000))
	require.ErrorIs(t, err, model.ErrInsufficientFunds)
}

func TestStartTwice(t *testing.T) {
	ctx, cancel, manager, _ := startNode(t, node.WithAccounts(1))
	defer cancel()

	require.Error(t, manager.Start(ctx))
}

// TestShutdownOnCancel verifies that canceling the start context stops the node
// and releases its RPC port.
func TestShutdownOnCancel(t *testing.T) {
	_, cancel, manager, handle := startNode(t, node.WithAccounts(1))

	cancel()
	select {
	case <-manager.Done():
	case <-time.After(node.ShutdownTimeout):
		t.Fatal("node did not shut down")
	}
	testutils.RequirePortClosesWithinTimeout(t, handle.RpcPort(), 5*time.Second)
}

// TestTransferMinesBlock_Period runs the node with a fixed block period instead
// of sealing on demand.
func TestTransferMinesBlock_Period(t *testing.T) {
	ctx, cancel, _, handle := startNode(t, node.WithAccounts(2), node.WithBlockPeriod(1))
	defer cancel()
	c := dial(t, ctx, handle)
	from, to := handle.Accounts()[0], handle.Accounts()[1]

	receipt, err := c.SendTransaction(ctx, from, to, wei.MustEther(1))
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.State)

	bal, err := c.BalanceOf(ctx, to)
	require.NoError(t, err)
	require.Equal(t, 0, wei.MustEther(101).Cmp(bal))
}

// TestFaucetScenario deploys the prebuilt Faucet, funds it and checks that only
// its owner may withdraw.
func TestFaucetScenario(t *testing.T) {
	runFaucetScenario(t, func(context.Context) (model.Artifact, error) {
		return contracts.FaucetArtifact(), nil
	})
}

// TestFaucetScenario_Compiled runs the same scenario on bytecode compiled from
// Faucet.sol.
func TestFaucetScenario_Compiled(t *testing.T) {
	if !contracts.SolcAvailable() {
		t.Skip("solc not found in PATH")
	}
	runFaucetScenario(t, contracts.CompileFaucet)
}

func runFaucetScenario(t *testing.T, build func(context.Context) (model.Artifact, error)) {
	ctx, cancel, _, handle := startNode(t, node.WithAccounts(2))
	defer cancel()
	c := dial(t, ctx, handle)
	owner, stranger := handle.Accounts()[0], handle.Accounts()[1]

	art, err := build(ctx)
	require.NoError(t, err)

	receipt, err := c.DeployContract(ctx, art, owner)
	require.NoError(t, err)
	require.NotNil(t, receipt.ContractAddress)

	faucet, err := contract.Bind(*receipt.ContractAddress, art.ABI, c)
	require.NoError(t, err)

	out, err := faucet.Call(ctx, "owner")
	require.NoError(t, err)
	require.Equal(t, owner, out[0].(common.Address))

	amount, err := c.ToWei("0.2", "ether")
	require.NoError(t, err)
	_, err = c.SendTransaction(ctx, owner, faucet.Address(), amount)
	require.NoError(t, err)

	out, err = faucet.Call(ctx, "getBalance")
	require.NoError(t, err)
	require.Equal(t, "200000000000000000", out[0].(*big.Int).String())

	_, err = faucet.Transact(ctx, contract.TransactOpts{From: stranger}, "withdraw", big.NewInt(10_000))
	require.ErrorIs(t, err, model.ErrTransactionReverted)
	var revert *model.RevertError
	require.ErrorAs(t, err, &revert)
	require.Equal(t, "only owner can withdraw", revert.Reason)

	_, err = faucet.Transact(ctx, contract.TransactOpts{From: owner}, "withdraw", wei.MustEther(1))
	require.ErrorAs(t, err, &revert)
	require.Equal(t, "insufficient faucet balance", revert.Reason)

	_, err = faucet.Transact(ctx, contract.TransactOpts{From: owner}, "withdraw", big.NewInt(10_000))
	require.NoError(t, err)

	out, err = faucet.Call(ctx, "getBalance")
	require.NoError(t, err)
	require.Equal(t, "199999999999990000", out[0].(*big.Int).String())
}
