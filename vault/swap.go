package vault

import "math/big"

// normalizeAmount rescales an integer amount between two fixed-point
// precisions at a nominal 1:1 exchange rate. Scaling down truncates toward
// zero, permanently discarding the remainder in the pool's favor; scaling up
// multiplies exactly. The rounding direction must survive any future rate
// model.
func normalizeAmount(amount *big.Int, decimalsIn, decimalsOut uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	switch {
	case decimalsIn == decimalsOut:
		return new(big.Int).Set(amount)
	case decimalsOut > decimalsIn:
		return new(big.Int).Mul(amount, pow10(decimalsOut-decimalsIn))
	default:
		return new(big.Int).Quo(amount, pow10(decimalsIn-decimalsOut))
	}
}
