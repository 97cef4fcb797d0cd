package state

import (
	"math/big"
	"testing"

	"vaultd/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestBalanceDefaultsToZero(t *testing.T) {
	manager := newTestManager(t)
	balance, err := manager.Balance([20]byte{0x01}, "TOKA")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}

func TestBalanceRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	addr := [20]byte{0x01}
	want, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	if err := manager.SetBalance(addr, "toka", want); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	got, err := manager.Balance(addr, "TOKA")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
	// Distinct assets and accounts never collide.
	other, err := manager.Balance(addr, "TOKB")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if other.Sign() != 0 {
		t.Fatalf("expected zero TOKB balance, got %s", other)
	}
}

func TestSetBalanceRejectsNegative(t *testing.T) {
	manager := newTestManager(t)
	if err := manager.SetBalance([20]byte{0x01}, "TOKA", big.NewInt(-1)); err == nil {
		t.Fatal("expected negative balance to be rejected")
	}
	if err := manager.SetTotal("TOKA", big.NewInt(-1)); err == nil {
		t.Fatal("expected negative total to be rejected")
	}
}

func TestEmptyAssetRejected(t *testing.T) {
	manager := newTestManager(t)
	if _, err := manager.Balance([20]byte{0x01}, "  "); err == nil {
		t.Fatal("expected empty asset to be rejected")
	}
	if err := manager.SetTotal("", big.NewInt(1)); err == nil {
		t.Fatal("expected empty asset to be rejected")
	}
}

func TestTotalRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	if err := manager.SetTotal("TOKA", big.NewInt(500)); err != nil {
		t.Fatalf("set total: %v", err)
	}
	got, err := manager.Total("TOKA")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if got.Int64() != 500 {
		t.Fatalf("expected 500, got %s", got)
	}
}

func TestAccountsIndex(t *testing.T) {
	manager := newTestManager(t)
	first := [20]byte{0x01}
	second := [20]byte{0x02}

	if err := manager.SetBalance(first, "TOKA", big.NewInt(1)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := manager.SetBalance(second, "TOKA", big.NewInt(2)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	// Writes to the same account never duplicate the index entry.
	if err := manager.SetBalance(first, "TOKA", big.NewInt(0)); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	accounts, err := manager.Accounts("TOKA")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 indexed accounts, got %d", len(accounts))
	}
	if accounts[0] != first || accounts[1] != second {
		t.Fatalf("unexpected index content: %v", accounts)
	}

	other, err := manager.Accounts("TOKB")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty index for untouched asset, got %d", len(other))
	}
}

func TestAssetCapsRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	deposit, withdraw, err := manager.AssetCaps("TOKA")
	if err != nil {
		t.Fatalf("caps: %v", err)
	}
	if deposit.Sign() != 0 || withdraw.Sign() != 0 {
		t.Fatalf("expected unset caps to read zero, got %s/%s", deposit, withdraw)
	}

	if err := manager.SetAssetCaps("TOKA", big.NewInt(1000), big.NewInt(50)); err != nil {
		t.Fatalf("set caps: %v", err)
	}
	deposit, withdraw, err = manager.AssetCaps("toka")
	if err != nil {
		t.Fatalf("caps: %v", err)
	}
	if deposit.Int64() != 1000 || withdraw.Int64() != 50 {
		t.Fatalf("expected 1000/50, got %s/%s", deposit, withdraw)
	}

	// Nil disables a cap without touching the other one's encoding.
	if err := manager.SetAssetCaps("TOKA", nil, big.NewInt(75)); err != nil {
		t.Fatalf("set caps: %v", err)
	}
	deposit, withdraw, err = manager.AssetCaps("TOKA")
	if err != nil {
		t.Fatalf("caps: %v", err)
	}
	if deposit.Sign() != 0 || withdraw.Int64() != 75 {
		t.Fatalf("expected 0/75, got %s/%s", deposit, withdraw)
	}

	if err := manager.SetAssetCaps("TOKA", big.NewInt(-1), nil); err == nil {
		t.Fatal("expected negative cap to be rejected")
	}
}

func TestUSDCapRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	cap, err := manager.USDCap()
	if err != nil {
		t.Fatalf("usd cap: %v", err)
	}
	if cap.Sign() != 0 {
		t.Fatalf("expected unset cap to read zero, got %s", cap)
	}

	if err := manager.SetUSDCap(big.NewInt(2_0000_0000)); err != nil {
		t.Fatalf("set usd cap: %v", err)
	}
	cap, err = manager.USDCap()
	if err != nil {
		t.Fatalf("usd cap: %v", err)
	}
	if cap.Int64() != 2_0000_0000 {
		t.Fatalf("expected 200000000, got %s", cap)
	}

	if err := manager.SetUSDCap(nil); err != nil {
		t.Fatalf("clear usd cap: %v", err)
	}
	cap, _ = manager.USDCap()
	if cap.Sign() != 0 {
		t.Fatalf("expected cleared cap, got %s", cap)
	}
}

func TestRoles(t *testing.T) {
	manager := newTestManager(t)
	operator := [20]byte{0x0a}
	stranger := [20]byte{0x0b}

	if manager.IsOperator(operator) {
		t.Fatal("expected no operators initially")
	}
	if err := manager.GrantRole(RoleOperator, operator); err != nil {
		t.Fatalf("grant: %v", err)
	}
	// Duplicate grants are a no-op.
	if err := manager.GrantRole(RoleOperator, operator); err != nil {
		t.Fatalf("duplicate grant: %v", err)
	}
	if !manager.IsOperator(operator) {
		t.Fatal("expected granted address to be operator")
	}
	if manager.IsOperator(stranger) {
		t.Fatal("expected stranger to lack the role")
	}
	if err := manager.RevokeRole(RoleOperator, operator); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if manager.IsOperator(operator) {
		t.Fatal("expected revoked address to lose the role")
	}
	// Revoking an absent member is a no-op.
	if err := manager.RevokeRole(RoleOperator, stranger); err != nil {
		t.Fatalf("revoke absent: %v", err)
	}
	if err := manager.GrantRole("", operator); err == nil {
		t.Fatal("expected empty role to be rejected")
	}
}
