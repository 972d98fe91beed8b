package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/thep2p/go-eth-devkit/internal"
	"github.com/thep2p/go-eth-devkit/internal/model"
	"github.com/thep2p/go-eth-devkit/internal/utils"
)

const (
	// OperationTimeout bounds the wait for the RPC endpoint to come up.
	OperationTimeout = 10 * time.Second
	// ShutdownTimeout bounds the wait for the node to stop after cancellation.
	ShutdownTimeout = 10 * time.Second
)

// Manager starts and stops a single dev node. It exposes the running node and
// tears it down once the start context is canceled.
type Manager struct {
	logger       zerolog.Logger
	baseDataDir  string
	launcher     *Launcher
	portAssigner internal.PortAssigner

	mu       sync.Mutex
	handle   *model.Handle
	started  bool
	shutdown chan struct{}
	cancel   context.CancelFunc
}

// NewNodeManager constructs a Manager that keeps the node data under baseDataDir.
// portAssigner may be nil when the RPC port is pinned with WithRPCPort.
func NewNodeManager(logger zerolog.Logger, launcher *Launcher, baseDataDir string, portAssigner internal.PortAssigner) *Manager {
	return &Manager{
		logger:       logger.With().Str("component", "node-manager").Logger(),
		baseDataDir:  baseDataDir,
		launcher:     launcher,
		portAssigner: portAssigner,
		shutdown:     make(chan struct{}),
	}
}

// Config returns the configuration Start launches with before opts are applied.
func (m *Manager) Config() model.Config {
	return model.Config{
		DataDir:    filepath.Join(m.baseDataDir, "node0"),
		ChainID:    DefaultChainID,
		Accounts:   DefaultAccounts,
		Funding:    DefaultFunding(),
		Passphrase: DefaultPassphrase,
		GasLimit:   DefaultGasLimit,
	}
}

// Start launches the node and waits until its RPC endpoint answers.
// The node runs until ctx is canceled.
func (m *Manager) Start(ctx context.Context, opts ...LaunchOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("node already started")
	}

	cfg := m.Config()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RPCPort == 0 {
		if m.portAssigner == nil {
			return errors.New("no rpc port: pin one with WithRPCPort or provide a port assigner")
		}
		cfg.RPCPort = m.portAssigner.NewPort()
	}

	h, err := m.launcher.Launch(cfg)
	if err != nil {
		return fmt.Errorf("launch node: %w", err)
	}

	if err := waitForRPC(ctx, utils.LocalAddress(cfg.RPCPort), OperationTimeout); err != nil {
		_ = h.Close()
		return err
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.handle = h
	m.started = true

	go func() {
		<-ctx.Done()
		if err := h.Close(); err != nil {
			m.logger.Error().Err(err).Msg("failed to close node")
		}
		m.logger.Info().Msg("dev node stopped")
		close(m.shutdown)
	}()

	return nil
}

// Handle returns the running node or nil if the node is not started.
func (m *Manager) Handle() *model.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// RPCPort returns the RPC port the node is using, zero before Start.
func (m *Manager) RPCPort() int {
	if h := m.Handle(); h != nil {
		return h.RpcPort()
	}
	return 0
}

// Done returns a channel closed once the node has shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdown
}

// Wait stops the node and blocks until it has shut down. It returns at once if
// the node was never started.
func (m *Manager) Wait() {
	m.mu.Lock()
	started, cancel := m.started, m.cancel
	m.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-m.shutdown
}

func waitForRPC(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		client, err := rpc.DialContext(ctx, url)
		if err == nil {
			var version string
			err = client.CallContext(ctx, &version, model.Web3ClientVersion)
			client.Close()
			if err == nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rpc %q never came up: %w", url, err)
		case <-ticker.C:
		}
	}
}
