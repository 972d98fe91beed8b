package testutils

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// PortAssigner hands out free TCP ports, never the same one twice.
// It satisfies internal.PortAssigner.
type PortAssigner struct {
	t             *testing.T
	mu            sync.Mutex
	assignedPorts map[int]struct{}
}

// NewPortAssigner initializes a PortAssigner bound to the given test instance.
// The returned assigner should only be used within the lifetime of the test.
func NewPortAssigner(t *testing.T) *PortAssigner {
	return &PortAssigner{
		t:             t,
		assignedPorts: make(map[int]struct{}),
	}
}

// NewPort returns a free TCP port that has not been handed out previously.
func (p *PortAssigner) NewPort() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(p.t, err, "failed to find open port")

		port := l.Addr().(*net.TCPAddr).Port
		require.NoError(p.t, l.Close(), "failed to close port listener")

		if _, taken := p.assignedPorts[port]; taken {
			continue
		}
		p.assignedPorts[port] = struct{}{}
		return port
	}
}

var (
	sharedMu    sync.Mutex
	sharedPorts = make(map[int]struct{})
)

// NewPort returns a free TCP port unique across all calls in the test binary.
func NewPort(t *testing.T) int {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()

	for {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err, "failed to find open port")

		port := l.Addr().(*net.TCPAddr).Port
		require.NoError(t, l.Close(), "failed to close port listener")

		if _, taken := sharedPorts[port]; taken {
			continue
		}
		sharedPorts[port] = struct{}{}
		return port
	}
}
