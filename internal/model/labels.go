package model

// JSON-RPC methods the client issues directly rather than through ethclient.
const (
	// Web3ClientVersion is the lightweight liveness probe method.
	Web3ClientVersion = "web3_clientVersion"

	// EthAccounts lists the accounts managed by the node.
	EthAccounts = "eth_accounts"

	// EthGetTransactionByHash retrieves a transaction, pending or mined, by its hash.
	EthGetTransactionByHash = "eth_getTransactionByHash"

	// EthSendTransaction submits a transaction that the node signs with one of its accounts.
	EthSendTransaction = "eth_sendTransaction"
)

// Methods issued through ethclient, named for request assertions.
const (
	EthGetCode     = "eth_getCode"
	EthCall        = "eth_call"
	EthEstimateGas = "eth_estimateGas"

	EthGetTransactionReceipt = "eth_getTransactionReceipt"
)
