package vault

import "sync/atomic"

// reentrancyGuard serializes the state-mutating entry points. Execution is
// cooperative: the hazard is an external collaborator calling back into the
// vault mid-operation, not parallel goroutines, but the flag is CAS-managed
// so concurrent API callers are serialized too.
type reentrancyGuard struct {
	busy atomic.Bool
}

func (g *reentrancyGuard) enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (g *reentrancyGuard) exit() {
	g.busy.Store(false)
}
