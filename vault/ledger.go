package vault

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Ledger owns every balance and total mutation. No other component writes
// ledger state directly; the engine routes all reads and writes through it so
// the invariant total[asset] == Σ balance(*, asset) has a single enforcement
// point.
type Ledger struct {
	state State
}

// NewLedger constructs a ledger bound to the provided state.
func NewLedger(state State) *Ledger {
	return &Ledger{state: state}
}

// BalanceOf is a pure read of the (account, asset) balance entry.
func (l *Ledger) BalanceOf(addr [20]byte, asset string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Balance(addr, NormalizeAsset(asset))
}

// TotalOf is a pure read of the asset's global total.
func (l *Ledger) TotalOf(asset string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Total(NormalizeAsset(asset))
}

// CheckCredit validates a credit without mutating anything. It fails closed
// with ErrAmountOverflow when the updated balance or total would leave the
// 256-bit unsigned range.
func (l *Ledger) CheckCredit(addr [20]byte, asset string, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	normalized := NormalizeAsset(asset)
	balance, err := l.state.Balance(addr, normalized)
	if err != nil {
		return err
	}
	total, err := l.state.Total(normalized)
	if err != nil {
		return err
	}
	if overflows(new(big.Int).Add(balance, amount)) || overflows(new(big.Int).Add(total, amount)) {
		return ErrAmountOverflow
	}
	return nil
}

// Credit increases the account's balance and the asset's total by amount.
func (l *Ledger) Credit(addr [20]byte, asset string, amount *big.Int) error {
	if err := l.CheckCredit(addr, asset, amount); err != nil {
		return err
	}
	normalized := NormalizeAsset(asset)
	balance, err := l.state.Balance(addr, normalized)
	if err != nil {
		return err
	}
	total, err := l.state.Total(normalized)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(addr, normalized, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := l.state.SetTotal(normalized, new(big.Int).Add(total, amount)); err != nil {
		// Restore the balance write so a storage fault cannot leave the
		// invariant broken.
		if restoreErr := l.state.SetBalance(addr, normalized, balance); restoreErr != nil {
			return fmt.Errorf("vault: total write failed (%v) and balance restore failed: %w", err, restoreErr)
		}
		return err
	}
	return nil
}

// Debit decreases the account's balance and the asset's total by amount. The
// account must hold at least amount of the asset.
func (l *Ledger) Debit(addr [20]byte, asset string, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	normalized := NormalizeAsset(asset)
	balance, err := l.state.Balance(addr, normalized)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return &InsufficientBalanceError{
			Asset:     normalized,
			Requested: cloneAmount(amount),
			Available: cloneAmount(balance),
		}
	}
	total, err := l.state.Total(normalized)
	if err != nil {
		return err
	}
	newTotal := new(big.Int).Sub(total, amount)
	if newTotal.Sign() < 0 {
		return fmt.Errorf("vault: ledger corrupt: %s total %s below balance debit %s", normalized, total, amount)
	}
	if err := l.state.SetBalance(addr, normalized, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := l.state.SetTotal(normalized, newTotal); err != nil {
		if restoreErr := l.state.SetBalance(addr, normalized, balance); restoreErr != nil {
			return fmt.Errorf("vault: total write failed (%v) and balance restore failed: %w", err, restoreErr)
		}
		return err
	}
	return nil
}

func overflows(value *big.Int) bool {
	_, overflow := uint256.FromBig(value)
	return overflow
}
