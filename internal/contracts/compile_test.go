package contracts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-eth-devkit/internal/contracts"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

func requireSolc(t *testing.T) {
	t.Helper()
	if !contracts.SolcAvailable() {
		t.Skip("solc not found in PATH")
	}
}

// TestGenerateAbiAndBin_Faucet compiles Faucet.sol and checks the emitted interface
// matches the one shipped with the package.
func TestGenerateAbiAndBin_Faucet(t *testing.T) {
	requireSolc(t)

	art, err := contracts.GenerateAbiAndBin(context.Background(), "Faucet.sol", "Faucet")
	require.NoError(t, err)
	require.NotEmpty(t, art.Bin)

	requireFaucetInterface(t, art.ABI)
}

// TestFaucetArtifact checks the prebuilt artifact exposes the Faucet interface and
// dispatches on every method selector.
func TestFaucetArtifact(t *testing.T) {
	art := contracts.FaucetArtifact()
	require.NotEmpty(t, art.Bin)
	parsed := requireFaucetInterface(t, art.ABI)

	for name, m := range parsed.Methods {
		require.True(t, bytes.Contains(art.Bin, m.ID), "selector of %s missing from bytecode", name)
	}
	require.True(t, bytes.Contains(art.Bin, []byte("only owner can withdraw")))
	require.True(t, bytes.Contains(art.Bin, []byte("insufficient faucet balance")))
}

func requireFaucetInterface(t *testing.T, abiJSON string) abi.ABI {
	t.Helper()
	got, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	want, err := abi.JSON(strings.NewReader(contracts.FaucetABI))
	require.NoError(t, err)

	require.Len(t, got.Methods, len(want.Methods))
	for name, m := range want.Methods {
		require.Contains(t, got.Methods, name)
		require.Equal(t, m.Sig, got.Methods[name].Sig)
		require.Equal(t, m.StateMutability, got.Methods[name].StateMutability)
	}
	require.True(t, got.HasReceive())
	return got
}

func TestCompileFaucet(t *testing.T) {
	requireSolc(t)

	art, err := contracts.CompileFaucet(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, art.Bin)
	require.NotEmpty(t, art.ABI)
}

// TestGenerateAbiAndBin_FileNotFound tests the case where the specified Solidity file does not exist.
func TestGenerateAbiAndBin_FileNotFound(t *testing.T) {
	requireSolc(t)

	art, err := contracts.GenerateAbiAndBin(context.Background(), "NonExistentContract.sol", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "file not found")
	require.Empty(t, art.Bin)
}

// TestGenerateAbiAndBin_CommandFailure ensures an error is returned when solc fails.
func TestGenerateAbiAndBin_CommandFailure(t *testing.T) {
	tmpDir := t.TempDir()
	solcPath := filepath.Join(tmpDir, "solc")
	require.NoError(t, os.WriteFile(solcPath, []byte("#!/bin/sh\nexit 1"), 0o755))
	t.Setenv("PATH", tmpDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	art, err := contracts.GenerateAbiAndBin(context.Background(), "Faucet.sol", "Faucet")
	require.Error(t, err)
	require.Contains(t, err.Error(), "solc failed")
	require.Empty(t, art.Bin)
}

func TestGenerateAbiAndBin_SolcMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := contracts.GenerateAbiAndBin(context.Background(), "Faucet.sol", "Faucet")
	require.ErrorIs(t, err, contracts.ErrSolcNotFound)
}

func TestSaveAndLoadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Faucet.json")
	art := model.Artifact{Bin: []byte{0x60, 0x80, 0x60, 0x40}, ABI: contracts.FaucetABI}

	require.NoError(t, contracts.SaveArtifact(path, art))

	loaded, err := contracts.LoadArtifact(path)
	require.NoError(t, err)
	require.Equal(t, art.Bin, loaded.Bin)

	// the abi round trips as JSON, whitespace aside
	var want, got interface{}
	require.NoError(t, json.Unmarshal([]byte(art.ABI), &want))
	require.NoError(t, json.Unmarshal([]byte(loaded.ABI), &got))
	require.Equal(t, want, got)
}

// TestLoadArtifact_Hardhat reads the hardhat layout, which names the bytecode "bytecode".
func TestLoadArtifact_Hardhat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Faucet.json")
	raw := `{"contractName":"Faucet","abi":[],"bytecode":"0x6080"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	art, err := contracts.LoadArtifact(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x80}, art.Bin)
	require.Equal(t, "[]", art.ABI)
}

func TestLoadArtifact_Invalid(t *testing.T) {
	dir := t.TempDir()

	noABI := filepath.Join(dir, "noabi.json")
	require.NoError(t, os.WriteFile(noABI, []byte(`{"bin":"6080"}`), 0o644))
	_, err := contracts.LoadArtifact(noABI)
	require.ErrorIs(t, err, model.ErrInvalidABI)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`not json`), 0o644))
	_, err = contracts.LoadArtifact(garbage)
	require.ErrorIs(t, err, model.ErrInvalidABI)

	badHex := filepath.Join(dir, "badhex.json")
	require.NoError(t, os.WriteFile(badHex, []byte(`{"abi":[],"bin":"zz"}`), 0o644))
	_, err = contracts.LoadArtifact(badHex)
	require.Error(t, err)

	_, err = contracts.LoadArtifact(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
