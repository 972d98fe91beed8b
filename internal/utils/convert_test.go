package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-eth-devkit/internal/utils"
)

func TestLocalAddress(t *testing.T) {
	require.Equal(t, "http://127.0.0.1:8545", utils.LocalAddress(8545))
}
