package executor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"agentpay/internal/domain"
)

// Compile-time interface check.
var _ Client = (*StubClient)(nil)

// StubClient implements Client in memory for demo mode and tests. It tracks
// call counts and supports error injection without making external calls.
type StubClient struct {
	mu      sync.Mutex
	balance decimal.Decimal

	// Error injection for tests. When set, the corresponding call fails.
	CreateErr  error
	TriggerErr error
	BalanceErr error

	createCalls  int
	triggerCalls int
}

// NewStubClient creates a StubClient holding the given wallet balance.
func NewStubClient(balance decimal.Decimal) *StubClient {
	return &StubClient{balance: balance}
}

// Name returns "stub".
func (c *StubClient) Name() string { return "stub" }

// CreateOnChain records the call and simulates on-chain registration.
func (c *StubClient) CreateOnChain(_ context.Context, _ domain.CreateSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	return c.CreateErr
}

// TriggerPayment records the call and returns a deterministic-format receipt.
func (c *StubClient) TriggerPayment(_ context.Context, _ string) (*TriggerReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggerCalls++
	if c.TriggerErr != nil {
		return nil, c.TriggerErr
	}
	return &TriggerReceipt{
		TransactionHash: "0x" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		PaidAt:          time.Now().UTC(),
	}, nil
}

// GetBalance returns the configured wallet balance.
func (c *StubClient) GetBalance(_ context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return decimal.Zero, c.BalanceErr
	}
	return c.balance, nil
}

// SetBalance replaces the wallet balance.
func (c *StubClient) SetBalance(balance decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = balance
}

// CreateCalls returns how many times CreateOnChain was invoked.
func (c *StubClient) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// TriggerCalls returns how many times TriggerPayment was invoked.
func (c *StubClient) TriggerCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggerCalls
}
