package events

import (
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	// TypeDeposited is emitted whenever assets are credited into the vault.
	TypeDeposited = "vault.deposited"
	// TypeWithdrawn is emitted whenever assets leave the vault.
	TypeWithdrawn = "vault.withdrawn"
	// TypeSwapped is emitted on every internal asset exchange.
	TypeSwapped = "vault.swapped"
	// TypeCapsUpdated is emitted when an administrator changes capacity limits.
	TypeCapsUpdated = "vault.caps_updated"
	// TypeOracleUpdated is emitted when the oracle reference changes.
	TypeOracleUpdated = "vault.oracle_updated"
)

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func addressString(addr [20]byte) string {
	return ethcommon.BytesToAddress(addr[:]).Hex()
}

type Deposited struct {
	Account [20]byte
	Asset   string
	Amount  *big.Int
}

func (Deposited) EventType() string { return TypeDeposited }

func (e Deposited) Attributes() map[string]string {
	return map[string]string{
		"account": addressString(e.Account),
		"asset":   strings.TrimSpace(e.Asset),
		"amount":  amountString(e.Amount),
	}
}

type Withdrawn struct {
	Account [20]byte
	Asset   string
	Amount  *big.Int
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

func (e Withdrawn) Attributes() map[string]string {
	return map[string]string{
		"account": addressString(e.Account),
		"asset":   strings.TrimSpace(e.Asset),
		"amount":  amountString(e.Amount),
	}
}

type Swapped struct {
	Account   [20]byte
	AssetIn   string
	AssetOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (Swapped) EventType() string { return TypeSwapped }

func (e Swapped) Attributes() map[string]string {
	return map[string]string{
		"account":   addressString(e.Account),
		"assetIn":   strings.TrimSpace(e.AssetIn),
		"assetOut":  strings.TrimSpace(e.AssetOut),
		"amountIn":  amountString(e.AmountIn),
		"amountOut": amountString(e.AmountOut),
	}
}

type CapsUpdated struct {
	Asset       string
	DepositCap  *big.Int
	WithdrawCap *big.Int
	USDCap      *big.Int
}

func (CapsUpdated) EventType() string { return TypeCapsUpdated }

func (e CapsUpdated) Attributes() map[string]string {
	attrs := map[string]string{
		"asset":       strings.TrimSpace(e.Asset),
		"depositCap":  amountString(e.DepositCap),
		"withdrawCap": amountString(e.WithdrawCap),
	}
	if e.USDCap != nil {
		attrs["usdCap"] = e.USDCap.String()
	}
	return attrs
}

type OracleUpdated struct {
	Source string
}

func (OracleUpdated) EventType() string { return TypeOracleUpdated }

func (e OracleUpdated) Attributes() map[string]string {
	return map[string]string{"source": strings.TrimSpace(e.Source)}
}
