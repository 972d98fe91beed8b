package client

import (
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is where local development nodes (hardhat, anvil, geth --dev) listen.
	DefaultEndpoint = "http://127.0.0.1:8545"

	DefaultPollInterval   = 200 * time.Millisecond
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultProbeTimeout   = 3 * time.Second

	// DefaultGasLimitBuffer is applied to node gas estimates when the caller
	// does not supply a gas limit.
	DefaultGasLimitBuffer = 1.2
)

// Config holds the parameters of a Client. It is read-only once the client is dialed.
type Config struct {
	// Endpoint is the HTTP JSON-RPC URL of the node.
	Endpoint string `validate:"required,url"`

	// PollInterval is the delay between two receipt lookups.
	PollInterval time.Duration `validate:"gt=0"`

	// ReceiptTimeout bounds WaitForReceipt. A caller context with an earlier
	// deadline takes precedence.
	ReceiptTimeout time.Duration `validate:"gt=0"`

	// ProbeTimeout bounds the liveness probe of IsConnected.
	ProbeTimeout time.Duration `validate:"gt=0"`

	// GasLimitBuffer multiplies gas estimates to absorb state changes between
	// estimation and inclusion.
	GasLimitBuffer float64 `validate:"gte=1,lte=3"`

	// HTTPClient overrides the transport. Nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// DefaultConfig returns a Config for the given endpoint with default timings.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		PollInterval:   DefaultPollInterval,
		ReceiptTimeout: DefaultReceiptTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
		GasLimitBuffer: DefaultGasLimitBuffer,
	}
}
