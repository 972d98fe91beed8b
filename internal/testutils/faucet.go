package testutils

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-eth-devkit/internal/contracts"
)

// FakeFaucet returns a FakeContract that behaves like contracts.FaucetSource
// deployed by owner.
func FakeFaucet(t *testing.T, owner common.Address) FakeContract {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(contracts.FaucetABI))
	require.NoError(t, err)

	return func(call FakeCall) ([]byte, error) {
		if len(call.Data) == 0 {
			// receive()
			return nil, nil
		}
		if len(call.Data) < 4 {
			return nil, &FakeRevert{}
		}
		method, err := parsed.MethodById(call.Data[:4])
		if err != nil {
			return nil, &FakeRevert{}
		}
		if call.Value.Sign() > 0 && !method.IsPayable() {
			return nil, &FakeRevert{}
		}

		switch method.Name {
		case "getBalance":
			return method.Outputs.Pack(call.Balance)
		case "owner":
			return method.Outputs.Pack(owner)
		case "withdraw":
			args, err := method.Inputs.Unpack(call.Data[4:])
			if err != nil {
				return nil, &FakeRevert{}
			}
			amount, ok := args[0].(*big.Int)
			if !ok {
				return nil, fmt.Errorf("withdraw: unexpected argument %T", args[0])
			}
			if call.From != owner {
				return nil, &FakeRevert{Reason: "only owner can withdraw"}
			}
			if amount.Cmp(call.Balance) > 0 {
				return nil, &FakeRevert{Reason: "insufficient faucet balance"}
			}
			call.Transfer(call.From, amount)
			return nil, nil
		}
		return nil, &FakeRevert{}
	}
}
