package contracts

import (
	_ "embed"

	"github.com/thep2p/go-eth-devkit/internal/model"
)

// FaucetSource is the Solidity source of Faucet, a contract that holds ether
// sent to it and lets only its deployer withdraw.
//
//go:embed Faucet.sol
var FaucetSource string

// FaucetABI is the interface solc emits for FaucetSource.
const FaucetABI = `[
	{"inputs":[],"stateMutability":"nonpayable","type":"constructor"},
	{"inputs":[],"name":"getBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"stateMutability":"payable","type":"receive"}
]`

//go:embed Faucet.json
var faucetArtifact []byte

// FaucetArtifact returns the prebuilt Faucet creation bytecode and interface.
// Deploying it needs no solc.
func FaucetArtifact() model.Artifact {
	art, err := DecodeArtifact(faucetArtifact)
	if err != nil {
		panic("contracts: embedded Faucet.json: " + err.Error())
	}
	return art
}
