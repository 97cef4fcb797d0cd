package vault

import (
	"fmt"
	"math/big"
)

// CapPolicy evaluates deposit and withdraw capacity limits. Caps are
// independent per asset and denominated in the asset's smallest unit; the
// native asset carries an additional USD-valued ceiling derived from the
// oracle price.
type CapPolicy struct {
	state  State
	oracle func() PriceOracle
}

// NewCapPolicy constructs a policy reading cap configuration from state and
// the current oracle reference through the supplied accessor.
func NewCapPolicy(state State, oracle func() PriceOracle) *CapPolicy {
	return &CapPolicy{state: state, oracle: oracle}
}

// CheckDeposit rejects a deposit that would push the asset's global total
// past its configured cap, or, for the native asset, past the USD-valued cap
// at the oracle's latest price.
func (p *CapPolicy) CheckDeposit(asset string, incoming, total *big.Int) error {
	if p == nil || p.state == nil {
		return errNilState
	}
	normalized := NormalizeAsset(asset)
	depositCap, _, err := p.state.AssetCaps(normalized)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(total, incoming)
	if depositCap.Sign() > 0 && projected.Cmp(depositCap) > 0 {
		return &CapReachedError{
			Asset:     normalized,
			Attempted: projected,
			Cap:       cloneAmount(depositCap),
		}
	}
	if normalized != NativeAsset {
		return nil
	}
	usdCap, err := p.state.USDCap()
	if err != nil {
		return err
	}
	if usdCap.Sign() == 0 {
		return nil
	}
	price, err := p.nativePrice()
	if err != nil {
		return err
	}
	// projected is in native smallest units (18 decimals), price is USD per
	// native unit in 8-decimal fixed point, so the quotient is USD in
	// 8-decimal fixed point.
	usdValue := new(big.Int).Mul(projected, price)
	usdValue.Quo(usdValue, pow10(NativeDecimals))
	if usdValue.Cmp(usdCap) > 0 {
		return &CapReachedError{
			Asset:     normalized,
			Attempted: usdValue,
			Cap:       cloneAmount(usdCap),
		}
	}
	return nil
}

// CheckWithdraw rejects a single withdrawal larger than the asset's
// per-operation limit.
func (p *CapPolicy) CheckWithdraw(asset string, amount *big.Int) error {
	if p == nil || p.state == nil {
		return errNilState
	}
	normalized := NormalizeAsset(asset)
	_, withdrawCap, err := p.state.AssetCaps(normalized)
	if err != nil {
		return err
	}
	if withdrawCap.Sign() > 0 && amount.Cmp(withdrawCap) > 0 {
		return &WithdrawLimitError{
			Asset:     normalized,
			Requested: cloneAmount(amount),
			Limit:     cloneAmount(withdrawCap),
		}
	}
	return nil
}

// nativePrice fails closed whenever the oracle errors, reports a
// non-positive price, or reports a zero update time. No staleness window is
// enforced beyond that; operators accept the feed's own cadence.
func (p *CapPolicy) nativePrice() (*big.Int, error) {
	if p.oracle == nil {
		return nil, ErrOracleUnavailable
	}
	oracle := p.oracle()
	if oracle == nil {
		return nil, ErrOracleUnavailable
	}
	price, updatedAt, err := oracle.LatestPrice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrOracleUnavailable
	}
	if updatedAt.IsZero() || updatedAt.Unix() == 0 {
		return nil, ErrOracleUnavailable
	}
	return price, nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
