package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

// DeploymentData returns the creation payload of art: bytecode followed by the
// ABI-encoded constructor arguments.
func DeploymentData(art model.Artifact, args ...interface{}) ([]byte, error) {
	if len(art.Bin) == 0 {
		return nil, fmt.Errorf("%w: empty bytecode", model.ErrDeployment)
	}
	parsed, err := abi.JSON(strings.NewReader(art.ABI))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidABI, err)
	}
	if got, want := len(args), len(parsed.Constructor.Inputs); got != want {
		return nil, fmt.Errorf("%w: constructor takes %d arguments, got %d", model.ErrArgumentMismatch, want, got)
	}
	packed, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: constructor: %w", model.ErrArgumentMismatch, err)
	}

	data := make([]byte, 0, len(art.Bin)+len(packed))
	data = append(data, art.Bin...)
	return append(data, packed...), nil
}

// SubmitDeployment submits the creation of art from a node-managed account. The
// nonce is pinned so the future contract address is known before inclusion.
// The contract is not usable until its receipt confirms; see WaitForReceipt.
func (c *Client) SubmitDeployment(ctx context.Context, art model.Artifact, from common.Address, args ...interface{}) (*model.PendingDeployment, error) {
	data, err := DeploymentData(art, args...)
	if err != nil {
		return nil, err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", nodeError(err))
	}

	hash, err := c.Submit(ctx, model.TxRequest{From: from, Data: data, Nonce: &nonce})
	if err != nil {
		return nil, err
	}

	pending := &model.PendingDeployment{
		TxHash:  hash,
		From:    from,
		Nonce:   nonce,
		Address: crypto.CreateAddress(from, nonce),
	}
	c.logger.Info().
		Str("hash", hash.Hex()).
		Str("address", pending.Address.Hex()).
		Uint64("nonce", nonce).
		Msg("deployment submitted")
	return pending, nil
}

// DeployContract deploys art and blocks until the deployment receipt is known.
// A failed deployment returns ErrDeployment, wrapping the revert if any.
func (c *Client) DeployContract(ctx context.Context, art model.Artifact, from common.Address, args ...interface{}) (*model.Receipt, error) {
	pending, err := c.SubmitDeployment(ctx, art, from, args...)
	if err != nil {
		if errors.Is(err, model.ErrTransactionReverted) {
			return nil, fmt.Errorf("%w: %w", model.ErrDeployment, err)
		}
		return nil, err
	}

	receipt, err := c.WaitForReceipt(ctx, pending.TxHash)
	if err != nil {
		if errors.Is(err, model.ErrTransactionReverted) {
			return receipt, fmt.Errorf("%w: %w", model.ErrDeployment, err)
		}
		return nil, err
	}
	if receipt.ContractAddress == nil {
		return receipt, fmt.Errorf("%w: receipt %s carries no contract address", model.ErrDeployment, receipt.TxHash.Hex())
	}

	c.logger.Info().Str("address", receipt.ContractAddress.Hex()).Msg("contract deployed")
	return receipt, nil
}
