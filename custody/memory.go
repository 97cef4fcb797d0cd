package custody

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Memory is an in-process asset-transfer collaborator that tracks the units
// physically held per asset. It stands in for an on-chain or bank-side
// settlement rail in single-node deployments and tests.
type Memory struct {
	mu   sync.Mutex
	held map[string]*big.Int
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]*big.Int)}
}

func normalize(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// TransferIn receives amount of asset into custody.
func (m *Memory) TransferIn(asset string, from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("custody: amount must be positive")
	}
	key := normalize(asset)
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.held[key]
	if !ok {
		current = big.NewInt(0)
	}
	m.held[key] = new(big.Int).Add(current, amount)
	return nil
}

// TransferOut releases amount of asset from custody.
func (m *Memory) TransferOut(asset string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("custody: amount must be positive")
	}
	key := normalize(asset)
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.held[key]
	if !ok || current.Cmp(amount) < 0 {
		return fmt.Errorf("custody: insufficient %s held", key)
	}
	m.held[key] = new(big.Int).Sub(current, amount)
	return nil
}

// HeldAmount reports the units of asset currently in custody.
func (m *Memory) HeldAmount(asset string) (*big.Int, error) {
	key := normalize(asset)
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.held[key]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

// Fund seeds custody with amount of asset without a ledger counterpart,
// simulating units stranded by direct transfers.
func (m *Memory) Fund(asset string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	key := normalize(asset)
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.held[key]
	if !ok {
		current = big.NewInt(0)
	}
	m.held[key] = new(big.Int).Add(current, amount)
}
