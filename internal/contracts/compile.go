// Package contracts turns Solidity sources into deployable artifacts.
//
// Compilation is delegated to the solc binary, which must be on PATH. Artifacts
// can also be loaded from JSON files written by solc, hardhat or this package.
package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

// ErrSolcNotFound is returned when solc is not installed.
var ErrSolcNotFound = errors.New("solc not found in PATH")

// SolcAvailable reports whether solc can be invoked.
func SolcAvailable() bool {
	_, err := exec.LookPath("solc")
	return err == nil
}

// GenerateAbiAndBin compiles a Solidity file and returns the artifact of the
// contract named contractName, or of the only contract when the name is empty.
func GenerateAbiAndBin(ctx context.Context, solPath string, contractName string) (model.Artifact, error) {
	if !SolcAvailable() {
		return model.Artifact{}, ErrSolcNotFound
	}
	if _, err := os.Stat(solPath); err != nil {
		return model.Artifact{}, fmt.Errorf("file not found: %w", err)
	}

	solcCmd := exec.CommandContext(ctx, "solc", "--combined-json", "abi,bin", "--metadata-hash", "none", solPath)
	output, err := solcCmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return model.Artifact{}, fmt.Errorf("solc failed: %w\nOutput: %s", err, string(exitErr.Stderr))
		}
		return model.Artifact{}, fmt.Errorf("solc failed: %w", err)
	}

	var combined struct {
		Contracts map[string]struct {
			ABI json.RawMessage `json:"abi"`
			Bin string          `json:"bin"`
		} `json:"contracts"`
	}
	if err := json.Unmarshal(output, &combined); err != nil {
		return model.Artifact{}, fmt.Errorf("unmarshal solc output: %w", err)
	}

	// solc keys contracts by "<path>:<name>", where path may be absolute.
	keys := make([]string, 0, len(combined.Contracts))
	for k := range combined.Contracts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if contractName != "" && !strings.HasSuffix(k, ":"+contractName) {
			continue
		}
		if contractName == "" && len(keys) > 1 {
			return model.Artifact{}, fmt.Errorf("%s defines %d contracts, a contract name is required", solPath, len(keys))
		}
		c := combined.Contracts[k]
		return toArtifact(c.Bin, c.ABI)
	}

	return model.Artifact{}, fmt.Errorf("compiled contract %q not found", contractName)
}

// CompileSource writes src to a temporary file named name and compiles it.
func CompileSource(ctx context.Context, name string, src string, contractName string) (model.Artifact, error) {
	dir, err := os.MkdirTemp("", "devkit-solc-*")
	if err != nil {
		return model.Artifact{}, fmt.Errorf("mkdir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		return model.Artifact{}, fmt.Errorf("write source: %w", err)
	}
	return GenerateAbiAndBin(ctx, path, contractName)
}

// CompileFaucet compiles the embedded Faucet contract.
func CompileFaucet(ctx context.Context) (model.Artifact, error) {
	return CompileSource(ctx, "Faucet.sol", FaucetSource, "Faucet")
}

// artifactFile is the on-disk form of an artifact. Hardhat names the
// bytecode field "bytecode", solc names it "bin".
type artifactFile struct {
	ABI      json.RawMessage `json:"abi"`
	Bin      string          `json:"bin,omitempty"`
	Bytecode string          `json:"bytecode,omitempty"`
}

// LoadArtifact reads an artifact JSON file.
func LoadArtifact(path string) (model.Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	art, err := DecodeArtifact(raw)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("%s: %w", path, err)
	}
	return art, nil
}

// DecodeArtifact parses artifact JSON in any of the formats LoadArtifact reads.
func DecodeArtifact(raw []byte) (model.Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.Artifact{}, fmt.Errorf("%w: decode artifact: %w", model.ErrInvalidABI, err)
	}
	bin := f.Bin
	if bin == "" {
		bin = f.Bytecode
	}
	return toArtifact(bin, f.ABI)
}

// EncodeArtifact renders art in the format LoadArtifact reads.
func EncodeArtifact(art model.Artifact) ([]byte, error) {
	f := artifactFile{
		ABI: json.RawMessage(art.ABI),
		Bin: hexutil.Encode(art.Bin),
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return raw, nil
}

// SaveArtifact writes art to path in the format LoadArtifact reads.
func SaveArtifact(path string, art model.Artifact) error {
	raw, err := EncodeArtifact(art)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func toArtifact(bin string, abiJSON json.RawMessage) (model.Artifact, error) {
	bin = strings.TrimSpace(bin)
	if !strings.HasPrefix(bin, "0x") {
		bin = "0x" + bin
	}
	code, err := hexutil.Decode(bin)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("decode bytecode: %w", err)
	}
	if len(abiJSON) == 0 {
		return model.Artifact{}, fmt.Errorf("%w: artifact has no abi", model.ErrInvalidABI)
	}
	return model.Artifact{Bin: code, ABI: string(abiJSON)}, nil
}
