package internal

// PortAssigner hands out ports for dev node RPC endpoints.
type PortAssigner interface {
	// NewPort returns a free port that has not been handed out before.
	// Failing to find one is irrecoverable.
	NewPort() int
}
