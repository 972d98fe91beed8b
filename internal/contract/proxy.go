// Package contract binds an ABI to a deployed address and exposes the
// contract's methods as calls and transactions.
//
// A Proxy is built without touching the network. Every invocation first
// validates the method name and arguments locally, then checks that code lives
// at the bound address, so a proxy bound to a pending deployment fails with
// ErrUnresolved instead of silently calling an empty account.
package contract

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

// Backend is the node access a Proxy needs. *client.Client satisfies it.
type Backend interface {
	Code(ctx context.Context, addr common.Address) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	Submit(ctx context.Context, req model.TxRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*model.Receipt, error)
}

// Method is an entry of the method table.
type Method struct {
	ABI      abi.Method
	Selector [4]byte
	// Constant methods do not modify state and are invoked with Call.
	Constant bool
	Payable  bool
}

// TransactOpts carries the sender side of a state-changing invocation.
type TransactOpts struct {
	From  common.Address
	Value *big.Int
	// GasLimit is estimated by the node when zero.
	GasLimit uint64
}

// Proxy is a contract bound to an address.
type Proxy struct {
	address common.Address
	abi     abi.ABI
	methods map[string]Method
	backend Backend
}

// Bind parses abiJSON and builds the method table of the contract at address.
// It performs no I/O.
func Bind(address common.Address, abiJSON string, backend Backend) (*Proxy, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidABI, err)
	}

	methods := make(map[string]Method, len(parsed.Methods))
	for name, m := range parsed.Methods {
		var sel [4]byte
		copy(sel[:], m.ID)
		methods[name] = Method{
			ABI:      m,
			Selector: sel,
			Constant: m.IsConstant(),
			Payable:  m.IsPayable(),
		}
	}

	return &Proxy{
		address: address,
		abi:     parsed,
		methods: methods,
		backend: backend,
	}, nil
}

// Address returns the bound address.
func (p *Proxy) Address() common.Address {
	return p.address
}

// ABI returns the parsed interface.
func (p *Proxy) ABI() abi.ABI {
	return p.abi
}

// Methods returns the method names in lexical order.
func (p *Proxy) Methods() []string {
	names := make([]string, 0, len(p.methods))
	for name := range p.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Method looks up name in the method table.
func (p *Proxy) Method(name string) (Method, error) {
	m, ok := p.methods[name]
	if !ok {
		return Method{}, fmt.Errorf("%w: %q on %s", model.ErrMethodNotFound, name, p.address.Hex())
	}
	return m, nil
}

// Pack encodes an invocation of name with args. It performs no I/O.
func (p *Proxy) Pack(name string, args ...interface{}) ([]byte, error) {
	m, err := p.Method(name)
	if err != nil {
		return nil, err
	}
	if got, want := len(args), len(m.ABI.Inputs); got != want {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", model.ErrArgumentMismatch, m.ABI.Sig, want, got)
	}
	data, err := p.abi.Pack(name, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrArgumentMismatch, m.ABI.Sig, err)
	}
	return data, nil
}

// Call executes name as a read-only message call at the latest block and
// returns the decoded outputs.
func (p *Proxy) Call(ctx context.Context, name string, args ...interface{}) ([]interface{}, error) {
	data, err := p.Pack(name, args...)
	if err != nil {
		return nil, err
	}
	if err := p.resolve(ctx); err != nil {
		return nil, err
	}

	out, err := p.backend.CallContract(ctx, ethereum.CallMsg{To: &p.address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}

	values, err := p.abi.Unpack(name, out)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", name, err)
	}
	return values, nil
}

// Transact submits name as a transaction from opts.From and waits for its
// receipt. A failure while estimating or a failed receipt status returns a
// RevertError carrying the reason when the node provides one.
func (p *Proxy) Transact(ctx context.Context, opts TransactOpts, name string, args ...interface{}) (*model.Receipt, error) {
	data, err := p.Pack(name, args...)
	if err != nil {
		return nil, err
	}
	m := p.methods[name]
	if opts.Value != nil && opts.Value.Sign() > 0 && !m.Payable {
		return nil, fmt.Errorf("%w: %s is not payable", model.ErrArgumentMismatch, m.ABI.Sig)
	}
	if err := p.resolve(ctx); err != nil {
		return nil, err
	}

	hash, err := p.backend.Submit(ctx, model.TxRequest{
		From:     opts.From,
		To:       &p.address,
		Value:    opts.Value,
		Data:     data,
		GasLimit: opts.GasLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("transact %s: %w", name, err)
	}
	return p.backend.WaitForReceipt(ctx, hash)
}

// resolve fails with ErrUnresolved while no code lives at the bound address.
func (p *Proxy) resolve(ctx context.Context) error {
	code, err := p.backend.Code(ctx, p.address)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: no code at %s", model.ErrUnresolved, p.address.Hex())
	}
	return nil
}
