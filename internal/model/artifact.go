package model

// Artifact is a compiled contract: creation bytecode and its JSON ABI.
// It is consumed once by a deployment.
type Artifact struct {
	Bin []byte
	ABI string
}
