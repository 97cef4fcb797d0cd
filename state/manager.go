package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"vaultd/storage"
)

var (
	balancePrefix  = []byte("vault/balance/")
	totalPrefix    = []byte("vault/total/")
	capsPrefix     = []byte("vault/caps/")
	accountsPrefix = []byte("vault/accounts/")
	usdCapKey      = []byte("vault/capusd")
)

// Manager reads and writes vault state records on top of a key-value
// database. All amounts are persisted as decimal strings inside RLP records
// so the on-disk format stays independent of word size.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type amountRecord struct {
	Amount string
}

type capsRecord struct {
	DepositCap  string
	WithdrawCap string
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func balanceKey(addr [20]byte, asset string) []byte {
	suffix := hex.EncodeToString(addr[:])
	key := make([]byte, 0, len(balancePrefix)+len(asset)+1+len(suffix))
	key = append(key, balancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	key = append(key, suffix...)
	return key
}

func totalKey(asset string) []byte {
	return append(append([]byte(nil), totalPrefix...), asset...)
}

func capsKey(asset string) []byte {
	return append(append([]byte(nil), capsPrefix...), asset...)
}

func accountsKey(asset string) []byte {
	return append(append([]byte(nil), accountsPrefix...), asset...)
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("state: manager not initialised")
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) amount(key []byte) (*big.Int, error) {
	var record amountRecord
	ok, err := m.get(key, &record)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(record.Amount) == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(record.Amount), 10)
	if !ok {
		return nil, fmt.Errorf("state: corrupt amount %q", record.Amount)
	}
	return value, nil
}

// Balance retrieves the asset balance credited to the account. Entries are
// implicitly zero-valued on first reference.
func (m *Manager) Balance(addr [20]byte, asset string) (*big.Int, error) {
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return nil, fmt.Errorf("state: asset must not be empty")
	}
	return m.amount(balanceKey(addr, normalized))
}

// SetBalance stores the asset balance for the account and tracks the account
// in the per-asset index so aggregate walks stay possible.
func (m *Manager) SetBalance(addr [20]byte, asset string, amount *big.Int) error {
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return fmt.Errorf("state: asset must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative balance not allowed")
	}
	if err := m.indexAccount(addr, normalized); err != nil {
		return err
	}
	return m.put(balanceKey(addr, normalized), amountRecord{Amount: amount.String()})
}

// Total retrieves the asset's global total.
func (m *Manager) Total(asset string) (*big.Int, error) {
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return nil, fmt.Errorf("state: asset must not be empty")
	}
	return m.amount(totalKey(normalized))
}

// SetTotal stores the asset's global total.
func (m *Manager) SetTotal(asset string, amount *big.Int) error {
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return fmt.Errorf("state: asset must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative total not allowed")
	}
	return m.put(totalKey(normalized), amountRecord{Amount: amount.String()})
}

// Accounts returns every account that ever held a balance of the asset. The
// list is append-only and deduplicated; zero is a valid terminal balance.
func (m *Manager) Accounts(asset string) ([][20]byte, error) {
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return nil, fmt.Errorf("state: asset must not be empty")
	}
	var raw [][]byte
	ok, err := m.get(accountsKey(normalized), &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return [][20]byte{}, nil
	}
	accounts := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], entry)
		accounts = append(accounts, addr)
	}
	return accounts, nil
}

func (m *Manager) indexAccount(addr [20]byte, asset string) error {
	key := accountsKey(asset)
	var raw [][]byte
	if _, err := m.get(key, &raw); err != nil {
		return err
	}
	for _, entry := range raw {
		if bytes.Equal(entry, addr[:]) {
			return nil
		}
	}
	raw = append(raw, append([]byte(nil), addr[:]...))
	return m.put(key, raw)
}

// AssetCaps returns the configured deposit and withdraw caps for the asset.
// Missing configuration reads as zero, which disables the respective cap.
func (m *Manager) AssetCaps(asset string) (*big.Int, *big.Int, error) {
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return nil, nil, fmt.Errorf("state: asset must not be empty")
	}
	var record capsRecord
	ok, err := m.get(capsKey(normalized), &record)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return big.NewInt(0), big.NewInt(0), nil
	}
	deposit, err := parseStoredAmount(record.DepositCap)
	if err != nil {
		return nil, nil, fmt.Errorf("state: corrupt deposit cap: %w", err)
	}
	withdraw, err := parseStoredAmount(record.WithdrawCap)
	if err != nil {
		return nil, nil, fmt.Errorf("state: corrupt withdraw cap: %w", err)
	}
	return deposit, withdraw, nil
}

// SetAssetCaps stores the deposit and withdraw caps for the asset. Nil or
// zero values disable the respective cap.
func (m *Manager) SetAssetCaps(asset string, deposit, withdraw *big.Int) error {
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return fmt.Errorf("state: asset must not be empty")
	}
	record := capsRecord{DepositCap: "0", WithdrawCap: "0"}
	if deposit != nil {
		if deposit.Sign() < 0 {
			return fmt.Errorf("state: negative deposit cap not allowed")
		}
		record.DepositCap = deposit.String()
	}
	if withdraw != nil {
		if withdraw.Sign() < 0 {
			return fmt.Errorf("state: negative withdraw cap not allowed")
		}
		record.WithdrawCap = withdraw.String()
	}
	return m.put(capsKey(normalized), record)
}

// USDCap returns the USD-valued ceiling on the native asset, in 8-decimal
// fixed point. Zero disables the cap.
func (m *Manager) USDCap() (*big.Int, error) {
	return m.amount(usdCapKey)
}

// SetUSDCap stores the USD-valued ceiling.
func (m *Manager) SetUSDCap(cap *big.Int) error {
	if cap == nil {
		cap = big.NewInt(0)
	}
	if cap.Sign() < 0 {
		return fmt.Errorf("state: negative usd cap not allowed")
	}
	return m.put(usdCapKey, amountRecord{Amount: cap.String()})
}

func parseStoredAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
