package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// RandomAddress generates a random Ethereum address for testing.
func RandomAddress(t *testing.T) common.Address {
	t.Helper()

	b := make([]byte, common.AddressLength)
	_, err := rand.Read(b)
	require.NoError(t, err, "failed to generate random bytes for address")

	return common.BytesToAddress(b)
}

// RandomAddresses generates n random Ethereum addresses for testing.
func RandomAddresses(t *testing.T, n int) []common.Address {
	t.Helper()

	addrs := make([]common.Address, n)
	for i := 0; i < n; i++ {
		addrs[i] = RandomAddress(t)
	}
	return addrs
}
