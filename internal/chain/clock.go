// Package chain provides block clock implementations. Logical time for the
// engine is a block height that advances externally and is only ever read.
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/updownmarket/internal/domain"
)

// SimClock is a manually advanced block clock for sim mode and tests.
type SimClock struct {
	mu     sync.Mutex
	height uint64
}

// NewSimClock creates a SimClock starting at the given height.
func NewSimClock(height uint64) *SimClock {
	return &SimClock{height: height}
}

// BlockNumber returns the current simulated height.
func (c *SimClock) BlockNumber(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}

// Set moves the clock to an absolute height. Heights never move backwards;
// a lower value is ignored.
func (c *SimClock) Set(height uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if height > c.height {
		c.height = height
	}
	return c.height
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *SimClock) Advance(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
	return c.height
}

// RPCClock reads the block height from an Ethereum JSON-RPC node. Results
// are cached for a short TTL so bursts of engine calls within the same block
// do not hammer the node.
type RPCClock struct {
	client *ethclient.Client
	ttl    time.Duration

	mu        sync.Mutex
	height    uint64
	fetchedAt time.Time
}

// DialRPCClock connects to the given JSON-RPC endpoint and returns an
// RPCClock with the given cache TTL.
func DialRPCClock(ctx context.Context, rawURL string, ttl time.Duration) (*RPCClock, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rawURL, err)
	}
	return &RPCClock{client: client, ttl: ttl}, nil
}

// BlockNumber returns the chain head height, served from cache within the
// TTL.
func (c *RPCClock) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl > 0 && time.Since(c.fetchedAt) < c.ttl {
		return c.height, nil
	}

	height, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	c.height = height
	c.fetchedAt = time.Now()
	return height, nil
}

// Close releases the underlying RPC connection.
func (c *RPCClock) Close() {
	c.client.Close()
}

// Compile-time interface checks.
var (
	_ domain.BlockClock = (*SimClock)(nil)
	_ domain.BlockClock = (*RPCClock)(nil)
)
