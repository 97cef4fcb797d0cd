package oracle

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Manual is a fixed-price oracle source maintained by an operator. It is the
// default wiring for deployments without a feed endpoint and the workhorse of
// deterministic tests.
type Manual struct {
	mu        sync.RWMutex
	price     *big.Int
	updatedAt time.Time
}

// NewManual constructs a manual source with no observation recorded; reads
// fail closed until SetPrice is called.
func NewManual() *Manual {
	return &Manual{}
}

// SetPrice records the USD price (8-decimal fixed point) and observation
// time.
func (m *Manual) SetPrice(price *big.Int, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if price != nil {
		m.price = new(big.Int).Set(price)
	} else {
		m.price = nil
	}
	m.updatedAt = at
}

// LatestPrice returns the recorded observation.
func (m *Manual) LatestPrice() (*big.Int, time.Time, error) {
	if m == nil {
		return nil, time.Time{}, fmt.Errorf("oracle: manual source not initialised")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.price == nil {
		return nil, time.Time{}, fmt.Errorf("oracle: no price recorded")
	}
	return new(big.Int).Set(m.price), m.updatedAt, nil
}
