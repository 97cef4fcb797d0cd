package vault

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrZeroAmount rejects operations with a nil, zero, or negative amount.
	ErrZeroAmount = errors.New("vault: amount must be positive")
	// ErrInvalidAsset rejects assets the vault does not recognise or that are
	// not allowed to participate in the requested operation.
	ErrInvalidAsset = errors.New("vault: invalid asset")
	// ErrReentrantCall indicates a guarded entry point was re-entered before
	// a prior call finished.
	ErrReentrantCall = errors.New("vault: reentrant call")
	// ErrAccessDenied indicates the caller holds neither the owner nor the
	// operator capability.
	ErrAccessDenied = errors.New("vault: access denied")
	// ErrOracleUnavailable indicates the price oracle reported an unusable
	// observation and the dependent check failed closed.
	ErrOracleUnavailable = errors.New("vault: oracle unavailable")
	// ErrAmountOverflow indicates a ledger counter would leave the 256-bit
	// unsigned range; the mutation is rejected rather than wrapped.
	ErrAmountOverflow = errors.New("vault: amount overflows counter range")

	errNilState      = errors.New("vault: state not configured")
	errNilTransferer = errors.New("vault: asset transferer not configured")
	errNilTokens     = errors.New("vault: token registry not configured")
	errNilOracle     = errors.New("vault: oracle reference must not be nil")
)

func cloneAmount(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amount)
}

// InsufficientBalanceError reports a debit exceeding the account's balance.
type InsufficientBalanceError struct {
	Asset     string
	Requested *big.Int
	Available *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("vault: insufficient %s balance: requested %s, available %s",
		e.Asset, amountOrZero(e.Requested), amountOrZero(e.Available))
}

// InsufficientLiquidityError reports that the pool cannot satisfy a swap,
// either because the output fell below the caller's minimum or because the
// pool does not hold enough of the output asset.
type InsufficientLiquidityError struct {
	Asset     string
	Requested *big.Int
	Available *big.Int
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("vault: insufficient %s liquidity: requested %s, available %s",
		e.Asset, amountOrZero(e.Requested), amountOrZero(e.Available))
}

// CapReachedError reports a deposit that would push an asset past its
// configured capacity (unit-denominated or USD-valued).
type CapReachedError struct {
	Asset     string
	Attempted *big.Int
	Cap       *big.Int
}

func (e *CapReachedError) Error() string {
	return fmt.Sprintf("vault: %s capacity reached: attempted %s, cap %s",
		e.Asset, amountOrZero(e.Attempted), amountOrZero(e.Cap))
}

// WithdrawLimitError reports a withdrawal exceeding the per-operation limit.
type WithdrawLimitError struct {
	Asset     string
	Requested *big.Int
	Limit     *big.Int
}

func (e *WithdrawLimitError) Error() string {
	return fmt.Sprintf("vault: %s withdraw limit exceeded: requested %s, limit %s",
		e.Asset, amountOrZero(e.Requested), amountOrZero(e.Limit))
}

// TransferFailedError surfaces a failure from the external asset-transfer
// collaborator. The underlying error is never swallowed.
type TransferFailedError struct {
	Asset string
	Op    string
	Err   error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("vault: %s transfer (%s) failed: %v", e.Asset, e.Op, e.Err)
}

func (e *TransferFailedError) Unwrap() error { return e.Err }

func amountOrZero(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
