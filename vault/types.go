package vault

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// NativeAsset is the reserved identifier for the native asset. All other
// identifiers denote fungible tokens whose decimal precision is queried from
// the token registry collaborator, never stored by the vault.
const NativeAsset = "NATIVE"

// NativeDecimals is the fixed precision of the native asset's smallest unit.
const NativeDecimals uint8 = 18

// USDDecimals is the fixed-point precision of oracle prices and the USD cap.
const USDDecimals uint8 = 8

// NormalizeAsset canonicalises an asset identifier.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// State exposes the persistence the vault engine requires. state.Manager is
// the production implementation; tests use in-memory fakes.
type State interface {
	Balance(addr [20]byte, asset string) (*big.Int, error)
	SetBalance(addr [20]byte, asset string, amount *big.Int) error
	Total(asset string) (*big.Int, error)
	SetTotal(asset string, amount *big.Int) error
	AssetCaps(asset string) (deposit, withdraw *big.Int, err error)
	SetAssetCaps(asset string, deposit, withdraw *big.Int) error
	USDCap() (*big.Int, error)
	SetUSDCap(cap *big.Int) error
}

// AssetTransferer is the external asset-transfer collaborator. TransferIn is
// invoked before crediting the ledger on deposit; a non-failing call is
// treated as success. TransferOut is invoked only after the ledger mutation
// has committed. HeldAmount reports the units physically in custody, which
// the rescue operation compares against the ledger total.
type AssetTransferer interface {
	TransferIn(asset string, from [20]byte, amount *big.Int) error
	TransferOut(asset string, to [20]byte, amount *big.Int) error
	HeldAmount(asset string) (*big.Int, error)
}

// PriceOracle reports the latest native-asset price in USD, 8-decimal fixed
// point, together with the upstream observation time.
type PriceOracle interface {
	LatestPrice() (price *big.Int, updatedAt time.Time, err error)
}

// RoleRegistry answers operator-capability queries. Grant and revoke are
// managed entirely outside the vault.
type RoleRegistry interface {
	IsOperator(addr [20]byte) bool
}

// TokenRegistry resolves the decimal precision of fungible assets. An error
// marks the asset as unknown to the vault.
type TokenRegistry interface {
	Decimals(asset string) (uint8, error)
}

// StaticTokenRegistry is a fixed symbol-to-decimals table satisfying
// TokenRegistry, keyed by normalised asset identifiers.
type StaticTokenRegistry map[string]uint8

func (r StaticTokenRegistry) Decimals(asset string) (uint8, error) {
	decimals, ok := r[NormalizeAsset(asset)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAsset, NormalizeAsset(asset))
	}
	return decimals, nil
}
