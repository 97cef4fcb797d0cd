package vault

import (
	"fmt"
	"math/big"

	"vaultd/events"
)

// Engine sequences the vault's entry points: deposits, withdrawals, the
// internal swap, and the administrative surface. All ledger access goes
// through the Ledger; all authorization goes through isAuthorized; all
// state-mutating entry points hold the reentrancy guard for their full
// duration.
type Engine struct {
	state     State
	ledger    *Ledger
	caps      *CapPolicy
	guard     reentrancyGuard
	owner     [20]byte
	roles     RoleRegistry
	tokens    TokenRegistry
	transfers AssetTransferer
	oracle    PriceOracle
	emitter   events.Emitter
}

// NewEngine constructs an engine bound to the provided state. The deployer
// address holds the owner capability; the operator capability is resolved
// through the role registry wired via SetRoleRegistry.
func NewEngine(state State, owner [20]byte) *Engine {
	e := &Engine{
		state:   state,
		ledger:  NewLedger(state),
		owner:   owner,
		emitter: events.NoopEmitter{},
	}
	e.caps = NewCapPolicy(state, func() PriceOracle { return e.oracle })
	return e
}

// SetRoleRegistry wires the external role registry collaborator.
func (e *Engine) SetRoleRegistry(roles RoleRegistry) {
	if e == nil {
		return
	}
	e.roles = roles
}

// SetTokenRegistry wires the collaborator answering fungible-asset decimal
// queries.
func (e *Engine) SetTokenRegistry(tokens TokenRegistry) {
	if e == nil {
		return
	}
	e.tokens = tokens
}

// SetTransferer wires the external asset-transfer collaborator.
func (e *Engine) SetTransferer(transfers AssetTransferer) {
	if e == nil {
		return
	}
	e.transfers = transfers
}

// SetEmitter wires the notification sink. Nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// WireOracle installs the construction-time oracle reference without the
// admin gate. Subsequent changes go through UpdateOracle.
func (e *Engine) WireOracle(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// Owner returns the designated owner identity.
func (e *Engine) Owner() [20]byte {
	if e == nil {
		return [20]byte{}
	}
	return e.owner
}

// isAuthorized is the single authorization predicate consumed by every
// administrative entry point: the caller is the designated owner or holds
// the externally managed operator capability.
func (e *Engine) isAuthorized(caller [20]byte) bool {
	if caller == e.owner {
		return true
	}
	return e.roles != nil && e.roles.IsOperator(caller)
}

// assetDecimals validates the asset identifier and resolves its precision.
func (e *Engine) assetDecimals(asset string) (uint8, error) {
	normalized := NormalizeAsset(asset)
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty identifier", ErrInvalidAsset)
	}
	if normalized == NativeAsset {
		return NativeDecimals, nil
	}
	if e.tokens == nil {
		return 0, errNilTokens
	}
	return e.tokens.Decimals(normalized)
}

// BalanceOf is a pure read and bypasses the reentrancy guard.
func (e *Engine) BalanceOf(account [20]byte, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.ledger.BalanceOf(account, asset)
}

// TotalOf is a pure read of the asset's pool-wide total.
func (e *Engine) TotalOf(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.ledger.TotalOf(asset)
}

// Caps returns the asset's configured deposit and withdraw caps.
func (e *Engine) Caps(asset string) (deposit, withdraw *big.Int, err error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	return e.state.AssetCaps(NormalizeAsset(asset))
}

// USDCap returns the USD-valued ceiling on the native asset.
func (e *Engine) USDCap() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.USDCap()
}

// Deposit pulls amount of asset from the caller through the transfer
// collaborator and credits the caller's vault balance.
func (e *Engine) Deposit(caller [20]byte, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	normalized := NormalizeAsset(asset)
	if _, err := e.assetDecimals(normalized); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	total, err := e.ledger.TotalOf(normalized)
	if err != nil {
		return err
	}
	if err := e.caps.CheckDeposit(normalized, amount, total); err != nil {
		return err
	}
	if err := e.ledger.CheckCredit(caller, normalized, amount); err != nil {
		return err
	}
	if e.transfers == nil {
		return errNilTransferer
	}
	// The inbound transfer must land before the credit: a non-failing call
	// is treated as success, and the guard covers any callback it makes.
	if err := e.transfers.TransferIn(normalized, caller, amount); err != nil {
		return &TransferFailedError{Asset: normalized, Op: "in", Err: err}
	}
	if err := e.ledger.Credit(caller, normalized, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.Deposited{Account: caller, Asset: normalized, Amount: cloneAmount(amount)})
	return nil
}

// Withdraw debits the caller's vault balance and pushes the units out
// through the transfer collaborator. The ledger mutation commits before the
// external interaction; a transfer failure restores the debited amounts so
// the operation stays atomic.
func (e *Engine) Withdraw(caller [20]byte, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	normalized := NormalizeAsset(asset)
	if _, err := e.assetDecimals(normalized); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if e.transfers == nil {
		return errNilTransferer
	}
	if err := e.caps.CheckWithdraw(normalized, amount); err != nil {
		return err
	}
	if err := e.ledger.Debit(caller, normalized, amount); err != nil {
		return err
	}
	if err := e.transfers.TransferOut(normalized, caller, amount); err != nil {
		if restoreErr := e.ledger.Credit(caller, normalized, amount); restoreErr != nil {
			return fmt.Errorf("vault: transfer out failed (%v) and ledger restore failed: %w", err, restoreErr)
		}
		return &TransferFailedError{Asset: normalized, Op: "out", Err: err}
	}
	e.emitter.Emit(events.Withdrawn{Account: caller, Asset: normalized, Amount: cloneAmount(amount)})
	return nil
}

// Swap exchanges amountIn of assetIn for assetOut inside the ledger at a
// nominal 1:1 decimal-adjusted rate. No external transfer occurs. The input
// leg is a full ledger debit and the output leg a full ledger credit, so
// total[asset] == Σ balance(*, asset) holds for both assets afterwards.
func (e *Engine) Swap(caller [20]byte, assetIn, assetOut string, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()

	in := NormalizeAsset(assetIn)
	out := NormalizeAsset(assetOut)
	if in == NativeAsset || out == NativeAsset {
		return nil, fmt.Errorf("%w: native asset cannot participate in swaps", ErrInvalidAsset)
	}
	if in == out {
		return nil, fmt.Errorf("%w: swap legs must differ", ErrInvalidAsset)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	decimalsIn, err := e.assetDecimals(in)
	if err != nil {
		return nil, err
	}
	decimalsOut, err := e.assetDecimals(out)
	if err != nil {
		return nil, err
	}
	balance, err := e.ledger.BalanceOf(caller, in)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amountIn) < 0 {
		return nil, &InsufficientBalanceError{
			Asset:     in,
			Requested: cloneAmount(amountIn),
			Available: balance,
		}
	}
	amountOut := normalizeAmount(amountIn, decimalsIn, decimalsOut)
	minOut := big.NewInt(0)
	if minAmountOut != nil {
		minOut = minAmountOut
	}
	if amountOut.Cmp(minOut) < 0 {
		return nil, &InsufficientLiquidityError{
			Asset:     out,
			Requested: cloneAmount(minOut),
			Available: amountOut,
		}
	}
	totalOut, err := e.ledger.TotalOf(out)
	if err != nil {
		return nil, err
	}
	if totalOut.Cmp(amountOut) < 0 {
		return nil, &InsufficientLiquidityError{
			Asset:     out,
			Requested: cloneAmount(amountOut),
			Available: totalOut,
		}
	}
	if amountOut.Sign() > 0 {
		if err := e.ledger.CheckCredit(caller, out, amountOut); err != nil {
			return nil, err
		}
	}
	if err := e.ledger.Debit(caller, in, amountIn); err != nil {
		return nil, err
	}
	// A zero output (the whole input floored away) still consumes the input;
	// the remainder stays with the pool.
	if amountOut.Sign() > 0 {
		if err := e.ledger.Credit(caller, out, amountOut); err != nil {
			if restoreErr := e.ledger.Credit(caller, in, amountIn); restoreErr != nil {
				return nil, fmt.Errorf("vault: swap credit failed (%v) and ledger restore failed: %w", err, restoreErr)
			}
			return nil, err
		}
	}
	e.emitter.Emit(events.Swapped{
		Account:   caller,
		AssetIn:   in,
		AssetOut:  out,
		AmountIn:  cloneAmount(amountIn),
		AmountOut: cloneAmount(amountOut),
	})
	return amountOut, nil
}

// SetAssetCaps configures the deposit and withdraw caps for an asset. Zero
// disables the respective cap. Administrative.
func (e *Engine) SetAssetCaps(caller [20]byte, asset string, deposit, withdraw *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.isAuthorized(caller) {
		return ErrAccessDenied
	}
	normalized := NormalizeAsset(asset)
	if _, err := e.assetDecimals(normalized); err != nil {
		return err
	}
	if err := e.state.SetAssetCaps(normalized, deposit, withdraw); err != nil {
		return err
	}
	e.emitter.Emit(events.CapsUpdated{
		Asset:       normalized,
		DepositCap:  cloneAmount(deposit),
		WithdrawCap: cloneAmount(withdraw),
	})
	return nil
}

// SetUSDCap configures the USD-valued ceiling on the native asset, 8-decimal
// fixed point, zero disabling it. Administrative.
func (e *Engine) SetUSDCap(caller [20]byte, cap *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.isAuthorized(caller) {
		return ErrAccessDenied
	}
	if err := e.state.SetUSDCap(cap); err != nil {
		return err
	}
	deposit, withdraw, err := e.state.AssetCaps(NativeAsset)
	if err != nil {
		return err
	}
	e.emitter.Emit(events.CapsUpdated{
		Asset:       NativeAsset,
		DepositCap:  deposit,
		WithdrawCap: withdraw,
		USDCap:      cloneAmount(cap),
	})
	return nil
}

// UpdateOracle swaps the oracle reference. Administrative.
func (e *Engine) UpdateOracle(caller [20]byte, oracle PriceOracle, source string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.isAuthorized(caller) {
		return ErrAccessDenied
	}
	if oracle == nil {
		return errNilOracle
	}
	e.oracle = oracle
	e.emitter.Emit(events.OracleUpdated{Source: source})
	return nil
}

// Rescue sweeps stranded units out of custody: only the surplus between what
// the transfer collaborator physically holds and what the ledger accounts
// for may leave, so custodied balances can never be drained. Administrative.
func (e *Engine) Rescue(caller [20]byte, asset string, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	if !e.isAuthorized(caller) {
		return ErrAccessDenied
	}
	normalized := NormalizeAsset(asset)
	if _, err := e.assetDecimals(normalized); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if e.transfers == nil {
		return errNilTransferer
	}
	held, err := e.transfers.HeldAmount(normalized)
	if err != nil {
		return &TransferFailedError{Asset: normalized, Op: "held", Err: err}
	}
	total, err := e.ledger.TotalOf(normalized)
	if err != nil {
		return err
	}
	surplus := new(big.Int).Sub(held, total)
	if surplus.Sign() < 0 {
		surplus = big.NewInt(0)
	}
	if surplus.Cmp(amount) < 0 {
		return &InsufficientBalanceError{
			Asset:     normalized,
			Requested: cloneAmount(amount),
			Available: surplus,
		}
	}
	if err := e.transfers.TransferOut(normalized, to, amount); err != nil {
		return &TransferFailedError{Asset: normalized, Op: "out", Err: err}
	}
	return nil
}
