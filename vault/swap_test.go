package vault

import (
	"math/big"
	"testing"
)

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		name        string
		amount      string
		decimalsIn  uint8
		decimalsOut uint8
		want        string
	}{
		{"equal decimals", "12345", 18, 18, "12345"},
		{"scale up 6 to 18", "7", 6, 18, "7000000000000"},
		{"scale down exact", "5000000000000", 18, 6, "5"},
		{"scale down floors", "1999999999999", 18, 6, "1"},
		{"scale down to zero", "999999999999", 18, 6, "0"},
		{"zero amount", "0", 6, 18, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, ok := new(big.Int).SetString(tc.amount, 10)
			if !ok {
				t.Fatalf("bad fixture %q", tc.amount)
			}
			got := normalizeAmount(amount, tc.decimalsIn, tc.decimalsOut)
			if got.String() != tc.want {
				t.Fatalf("normalizeAmount(%s, %d, %d) = %s, want %s",
					tc.amount, tc.decimalsIn, tc.decimalsOut, got, tc.want)
			}
			if amount.String() != tc.amount {
				t.Fatalf("input mutated: %s", amount)
			}
		})
	}
}

func TestNormalizeAmountNil(t *testing.T) {
	if got := normalizeAmount(nil, 18, 6); got.Sign() != 0 {
		t.Fatalf("expected zero for nil amount, got %s", got)
	}
}

func TestLedgerOverflowRejected(t *testing.T) {
	state := newMemState()
	ledger := NewLedger(state)

	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := ledger.Credit(alice, "TOKA", max); err != nil {
		t.Fatalf("credit at counter limit: %v", err)
	}
	if err := ledger.CheckCredit(alice, "TOKA", big.NewInt(1)); err != ErrAmountOverflow {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	if err := ledger.Credit(bob, "TOKA", big.NewInt(1)); err != ErrAmountOverflow {
		t.Fatalf("expected total overflow rejection, got %v", err)
	}
	checkInvariant(t, state)
}
