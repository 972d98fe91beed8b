package testutils

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

const (
	fakeTransferGas = 21_000
	fakeCallGas     = 90_000
)

// FakeCall is a message call delivered to a FakeContract.
type FakeCall struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
	// Balance of the contract, including Value.
	Balance *big.Int
	// Commit is false for eth_call and eth_estimateGas.
	Commit bool
	// Transfer moves wei out of the contract. It is a no-op unless Commit is set.
	Transfer func(to common.Address, amount *big.Int)
}

// FakeContract is the behavior of a contract deployed on a FakeNode.
// Returning a *FakeRevert reverts the call.
type FakeContract func(call FakeCall) ([]byte, error)

// FakeRevert is a revert raised by a FakeContract. It is reported to clients the
// way geth does: JSON-RPC error code 3 with the Error(string) payload as data.
type FakeRevert struct {
	Reason string
}

func (e *FakeRevert) Error() string          { return "execution reverted: " + e.Reason }
func (e *FakeRevert) ErrorCode() int         { return 3 }
func (e *FakeRevert) ErrorData() interface{} { return hexutil.Encode(RevertData(e.Reason)) }

// RevertData ABI-encodes reason as an Error(string) revert payload.
func RevertData(reason string) []byte {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

// fakeIndexingError is what geth answers receipt lookups with while its
// transaction indexer is behind.
type fakeIndexingError struct{}

func (fakeIndexingError) Error() string          { return "transaction indexing is in progress" }
func (fakeIndexingError) ErrorCode() int         { return -32000 }
func (fakeIndexingError) ErrorData() interface{} { return "transaction indexing is in progress" }

type fakeTx struct {
	hash    common.Hash
	from    common.Address
	to      *common.Address
	value   *big.Int
	data    []byte
	gas     uint64
	nonce   uint64
	created common.Address
}

// FakeNode is an in-memory development node speaking JSON-RPC over HTTP. It
// manages a set of funded accounts, signs nothing and charges no gas. Every
// request is recorded so tests can assert which calls reached the network.
type FakeNode struct {
	t      *testing.T
	server *httptest.Server
	rpc    *rpc.Server

	mu           sync.Mutex
	chainID      *big.Int
	gasPrice     *big.Int
	block        uint64
	accounts     []common.Address
	balances     map[common.Address]*big.Int
	nonces       map[common.Address]uint64
	code         map[common.Address][]byte
	contracts    map[common.Address]FakeContract
	txs          map[common.Hash]*fakeTx
	pending      []*fakeTx
	receipts     map[common.Hash]*types.Receipt
	holdBlocks   bool
	nextContract FakeContract
	failDeploy   bool
	indexing     int
	requests     []string
}

// NewFakeNode starts a FakeNode with the given number of accounts, each funded
// with funding wei. It is shut down when the test ends.
func NewFakeNode(t *testing.T, accounts int, funding *big.Int) *FakeNode {
	t.Helper()

	n := &FakeNode{
		t:         t,
		chainID:   big.NewInt(1337),
		gasPrice:  big.NewInt(1_000_000_000),
		block:     1,
		balances:  make(map[common.Address]*big.Int),
		nonces:    make(map[common.Address]uint64),
		code:      make(map[common.Address][]byte),
		contracts: make(map[common.Address]FakeContract),
		txs:       make(map[common.Hash]*fakeTx),
		receipts:  make(map[common.Hash]*types.Receipt),
	}
	for _, addr := range RandomAddresses(t, accounts) {
		n.accounts = append(n.accounts, addr)
		n.balances[addr] = new(big.Int).Set(funding)
	}

	n.rpc = rpc.NewServer()
	require.NoError(t, n.rpc.RegisterName("eth", &fakeEthAPI{n: n}))
	require.NoError(t, n.rpc.RegisterName("web3", &fakeWeb3API{}))

	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	t.Cleanup(func() {
		n.server.Close()
		n.rpc.Stop()
	})
	return n
}

// URL returns the HTTP endpoint of the node.
func (n *FakeNode) URL() string {
	return n.server.URL
}

// Shutdown stops serving requests, making the endpoint unreachable.
func (n *FakeNode) Shutdown() {
	n.server.Close()
}

// Accounts returns the node-managed accounts.
func (n *FakeNode) Accounts() []common.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]common.Address(nil), n.accounts...)
}

// Balance returns the current balance of addr.
func (n *FakeNode) Balance(addr common.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return new(big.Int).Set(n.balanceOf(addr))
}

// SetGasPrice changes the price reported by eth_gasPrice.
func (n *FakeNode) SetGasPrice(price *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasPrice = new(big.Int).Set(price)
}

// SetNextContract sets the behavior of the next contract deployed on the node.
func (n *FakeNode) SetNextContract(c FakeContract) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextContract = c
}

// FailNextDeployment makes the next contract creation mine with a failed status.
func (n *FakeNode) FailNextDeployment() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failDeploy = true
}

// IndexingPolls makes the next n receipt lookups fail the way a node still
// indexing transactions does.
func (n *FakeNode) IndexingPolls(polls int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.indexing = polls
}

// HoldBlocks keeps submitted transactions pending until Mine is called.
func (n *FakeNode) HoldBlocks(hold bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.holdBlocks = hold
}

// Mine includes every pending transaction in a new block.
func (n *FakeNode) Mine() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, tx := range n.pending {
		n.mine(tx)
	}
	n.pending = nil
}

// Drop forgets a pending transaction, as a node restart or a replacement would.
func (n *FakeNode) Drop(hash common.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.txs, hash)
	kept := n.pending[:0]
	for _, tx := range n.pending {
		if tx.hash != hash {
			kept = append(kept, tx)
		}
	}
	n.pending = kept
}

// Requests returns the JSON-RPC methods received so far, in order.
func (n *FakeNode) Requests() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.requests...)
}

// ResetRequests clears the request log.
func (n *FakeNode) ResetRequests() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = nil
}

func (n *FakeNode) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.record(body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	n.rpc.ServeHTTP(w, r)
}

func (n *FakeNode) record(body []byte) {
	type call struct {
		Method string `json:"method"`
	}
	var methods []string
	var single call
	if err := json.Unmarshal(body, &single); err == nil {
		methods = append(methods, single.Method)
	} else {
		var batch []call
		if err := json.Unmarshal(body, &batch); err == nil {
			for _, c := range batch {
				methods = append(methods, c.Method)
			}
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, methods...)
}

func (n *FakeNode) balanceOf(addr common.Address) *big.Int {
	if b, ok := n.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (n *FakeNode) isAccount(addr common.Address) bool {
	for _, a := range n.accounts {
		if a == addr {
			return true
		}
	}
	return false
}

func (n *FakeNode) transfer(from, to common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	n.balances[from] = new(big.Int).Sub(n.balanceOf(from), amount)
	n.balances[to] = new(big.Int).Add(n.balanceOf(to), amount)
}

// execute runs a message call against the contract at to, if any.
func (n *FakeNode) execute(from, to common.Address, value *big.Int, data []byte, commit bool) ([]byte, error) {
	contract, ok := n.contracts[to]
	if !ok {
		return nil, nil
	}
	if value == nil {
		value = new(big.Int)
	}

	var transfers []func()
	call := FakeCall{
		From:    from,
		To:      to,
		Value:   value,
		Data:    data,
		Balance: new(big.Int).Add(n.balanceOf(to), value),
		Commit:  commit,
		Transfer: func(dst common.Address, amount *big.Int) {
			if commit {
				transfers = append(transfers, func() { n.transfer(to, dst, amount) })
			}
		},
	}
	out, err := contract(call)
	if err != nil {
		return nil, err
	}
	if commit {
		n.transfer(from, to, value)
		for _, apply := range transfers {
			apply()
		}
	}
	return out, nil
}

func (n *FakeNode) mine(tx *fakeTx) {
	status := types.ReceiptStatusSuccessful
	gasUsed := uint64(fakeTransferGas)

	var contractAddr common.Address
	switch {
	case tx.to == nil:
		gasUsed = fakeCallGas
		if n.failDeploy {
			n.failDeploy = false
			status = types.ReceiptStatusFailed
			break
		}
		contractAddr = tx.created
		n.code[contractAddr] = append([]byte{}, tx.data...)
		if n.nextContract != nil {
			n.contracts[contractAddr] = n.nextContract
			n.nextContract = nil
		}
	default:
		if len(tx.data) > 0 {
			gasUsed = fakeCallGas
		}
		if _, err := n.execute(tx.from, *tx.to, tx.value, tx.data, true); err != nil {
			status = types.ReceiptStatusFailed
		} else if _, isContract := n.contracts[*tx.to]; !isContract {
			n.transfer(tx.from, *tx.to, tx.value)
		}
	}

	n.receipts[tx.hash] = &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            status,
		CumulativeGasUsed: gasUsed,
		Logs:              []*types.Log{},
		TxHash:            tx.hash,
		ContractAddress:   contractAddr,
		GasUsed:           gasUsed,
		EffectiveGasPrice: new(big.Int).Set(n.gasPrice),
		BlockHash:         crypto.Keccak256Hash(tx.hash.Bytes()),
		BlockNumber:       new(big.Int).SetUint64(n.block),
	}
	n.block++
}

// fakeCallArgs accepts both the "data" and the "input" field names.
type fakeCallArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Nonce    *hexutil.Uint64 `json:"nonce"`
	Data     *hexutil.Bytes  `json:"data"`
	Input    *hexutil.Bytes  `json:"input"`
}

func (a fakeCallArgs) from() common.Address {
	if a.From == nil {
		return common.Address{}
	}
	return *a.From
}

func (a fakeCallArgs) value() *big.Int {
	if a.Value == nil {
		return new(big.Int)
	}
	return a.Value.ToInt()
}

func (a fakeCallArgs) data() []byte {
	switch {
	case a.Input != nil:
		return *a.Input
	case a.Data != nil:
		return *a.Data
	default:
		return nil
	}
}

// fakeEthAPI implements the eth namespace of FakeNode.
type fakeEthAPI struct {
	n *FakeNode
}

func (api *fakeEthAPI) ChainId() *hexutil.Big {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	return (*hexutil.Big)(new(big.Int).Set(api.n.chainID))
}

func (api *fakeEthAPI) BlockNumber() hexutil.Uint64 {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	return hexutil.Uint64(api.n.block - 1)
}

func (api *fakeEthAPI) Accounts() []common.Address {
	return api.n.Accounts()
}

func (api *fakeEthAPI) GetBalance(addr common.Address, block string) *hexutil.Big {
	return (*hexutil.Big)(api.n.Balance(addr))
}

func (api *fakeEthAPI) GasPrice() *hexutil.Big {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	return (*hexutil.Big)(new(big.Int).Set(api.n.gasPrice))
}

func (api *fakeEthAPI) GetCode(addr common.Address, block string) hexutil.Bytes {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	return append(hexutil.Bytes{}, api.n.code[addr]...)
}

func (api *fakeEthAPI) GetTransactionCount(addr common.Address, block string) hexutil.Uint64 {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	return hexutil.Uint64(api.n.nonces[addr])
}

func (api *fakeEthAPI) EstimateGas(args fakeCallArgs, block *string) (hexutil.Uint64, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()

	from := args.from()
	if n.balanceOf(from).Cmp(args.value()) < 0 {
		return 0, errors.New("insufficient funds for transfer")
	}
	if args.To == nil {
		return fakeCallGas, nil
	}
	if _, err := n.execute(from, *args.To, args.value(), args.data(), false); err != nil {
		return 0, err
	}
	if len(args.data()) > 0 {
		return fakeCallGas, nil
	}
	return fakeTransferGas, nil
}

func (api *fakeEthAPI) Call(args fakeCallArgs, block *string) (hexutil.Bytes, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()

	if args.To == nil {
		return hexutil.Bytes{}, nil
	}
	out, err := n.execute(args.from(), *args.To, args.value(), args.data(), false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (api *fakeEthAPI) SendTransaction(args fakeCallArgs) (common.Hash, error) {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()

	from := args.from()
	if !n.isAccount(from) {
		return common.Hash{}, fmt.Errorf("unknown account %s", from.Hex())
	}
	nonce := n.nonces[from]
	if args.Nonce != nil && uint64(*args.Nonce) != nonce {
		return common.Hash{}, fmt.Errorf("invalid nonce: have %d, want %d", uint64(*args.Nonce), nonce)
	}
	if n.balanceOf(from).Cmp(args.value()) < 0 {
		return common.Hash{}, fmt.Errorf("insufficient funds for gas * price + value: address %s have %s want %s",
			from.Hex(), n.balanceOf(from), args.value())
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	tx := &fakeTx{
		hash:  crypto.Keccak256Hash(from.Bytes(), nonceBytes[:]),
		from:  from,
		to:    args.To,
		value: args.value(),
		data:  args.data(),
		nonce: nonce,
	}
	if args.Gas != nil {
		tx.gas = uint64(*args.Gas)
	}
	if tx.to == nil {
		tx.created = crypto.CreateAddress(from, nonce)
	}

	n.nonces[from] = nonce + 1
	n.txs[tx.hash] = tx
	if n.holdBlocks {
		n.pending = append(n.pending, tx)
	} else {
		n.mine(tx)
	}
	return tx.hash, nil
}

func (api *fakeEthAPI) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	api.n.mu.Lock()
	defer api.n.mu.Unlock()
	if api.n.indexing > 0 {
		api.n.indexing--
		return nil, fakeIndexingError{}
	}
	return api.n.receipts[hash], nil
}

func (api *fakeEthAPI) GetTransactionByHash(hash common.Hash) map[string]interface{} {
	n := api.n
	n.mu.Lock()
	defer n.mu.Unlock()

	tx, ok := n.txs[hash]
	if !ok {
		return nil
	}
	out := map[string]interface{}{
		"hash":  tx.hash,
		"from":  tx.from,
		"to":    tx.to,
		"gas":   hexutil.Uint64(tx.gas),
		"value": (*hexutil.Big)(tx.value),
		"input": hexutil.Bytes(tx.data),
		"nonce": hexutil.Uint64(tx.nonce),
	}
	if r, mined := n.receipts[hash]; mined {
		out["blockNumber"] = (*hexutil.Big)(r.BlockNumber)
	} else {
		out["blockNumber"] = nil
	}
	return out
}

// fakeWeb3API implements the web3 namespace of FakeNode.
type fakeWeb3API struct{}

func (fakeWeb3API) ClientVersion() string {
	return "FakeNode/v0.0.0/devkit"
}
