package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultCallTimeout bounds every RPC read so one unresponsive provider call
// cannot stall the watcher loop.
const DefaultCallTimeout = 15 * time.Second

// Client wraps go-ethereum RPC with bounded per-call timeouts and a block
// timestamp memo. All methods are read-only.
type Client struct {
	rpcClient   *rpc.Client
	ethClient   *ethclient.Client
	callTimeout time.Duration

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials the RPC endpoint. callTimeout <= 0 falls back to
// DefaultCallTimeout.
func NewClient(ctx context.Context, rpcURL string, callTimeout time.Duration) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}

	return &Client{
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		callTimeout: callTimeout,
		tsCache:     make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	head, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, &ProviderError{Op: "blockNumber", Err: err}
	}
	return head, nil
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
// Mined block timestamps never change, so entries are kept for the process
// lifetime.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	callCtx, cancel := c.bounded(ctx)
	defer cancel()

	header, err := c.ethClient.HeaderByNumber(callCtx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, &ProviderError{Op: "getBlock", Err: err}
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns logs emitted by address in [fromBlock, toBlock] whose
// topic0 matches any of the given hashes. The node returns them ordered by
// block number then log index; that order is preserved.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	address common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}

	callCtx, cancel := c.bounded(ctx)
	defer cancel()

	logs, err := c.ethClient.FilterLogs(callCtx, query)
	if err != nil {
		return nil, classifyLogsError(err)
	}
	return logs, nil
}

// CallContract performs an eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	callCtx, cancel := c.bounded(ctx)
	defer cancel()

	out, err := c.ethClient.CallContract(callCtx, msg, nil)
	if err != nil {
		return nil, &ProviderError{Op: "call", Err: err}
	}
	return out, nil
}

// CodeAt returns the deployed bytecode at the address, empty for EOAs.
func (c *Client) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	callCtx, cancel := c.bounded(ctx)
	defer cancel()

	code, err := c.ethClient.CodeAt(callCtx, account, nil)
	if err != nil {
		return nil, &ProviderError{Op: "getCode", Err: err}
	}
	return code, nil
}
