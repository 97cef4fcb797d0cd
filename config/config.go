package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"vaultd/vault"
)

// Config mirrors the on-disk TOML layout. Amount fields are strings so
// operators can write "250000e18" or "1_000_000" without losing precision.
type Config struct {
	ListenAddress string
	DataDir       string
	Env           string
	Owner         string

	Vault     VaultConfig     `toml:"vault"`
	Tokens    []TokenConfig   `toml:"token"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
}

// VaultConfig captures the construction-time capacity limits and the oracle
// feed for the native asset.
type VaultConfig struct {
	NativeDepositCap  string
	NativeWithdrawCap string
	USDCap            string
	OracleEndpoint    string
}

// TokenConfig declares a fungible asset the deployment recognises.
type TokenConfig struct {
	Symbol   string
	Decimals uint8
}

// RateLimitConfig bounds the HTTP surface per client.
type RateLimitConfig struct {
	RequestsPerMinute float64
	Burst             int
}

// Load reads and normalises the configuration file at path.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg.Normalise(), nil
}

// Normalise trims whitespace and applies canonical defaults.
func (c Config) Normalise() Config {
	cfg := c
	cfg.ListenAddress = strings.TrimSpace(c.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8651"
	}
	cfg.DataDir = strings.TrimSpace(c.DataDir)
	cfg.Env = strings.TrimSpace(c.Env)
	cfg.Owner = strings.TrimSpace(c.Owner)
	cfg.Vault.NativeDepositCap = strings.TrimSpace(c.Vault.NativeDepositCap)
	cfg.Vault.NativeWithdrawCap = strings.TrimSpace(c.Vault.NativeWithdrawCap)
	cfg.Vault.USDCap = strings.TrimSpace(c.Vault.USDCap)
	cfg.Vault.OracleEndpoint = strings.TrimSpace(c.Vault.OracleEndpoint)
	tokens := make([]TokenConfig, 0, len(c.Tokens))
	for _, token := range c.Tokens {
		symbol := vault.NormalizeAsset(token.Symbol)
		if symbol == "" {
			continue
		}
		tokens = append(tokens, TokenConfig{Symbol: symbol, Decimals: token.Decimals})
	}
	cfg.Tokens = tokens
	return cfg
}

// Parameters holds the runtime-ready interpretation of the configuration.
type Parameters struct {
	ListenAddress     string
	DataDir           string
	Env               string
	Owner             [20]byte
	NativeDepositCap  *big.Int
	NativeWithdrawCap *big.Int
	USDCap            *big.Int
	OracleEndpoint    string
	Tokens            vault.StaticTokenRegistry
	RateLimit         RateLimitConfig
}

// Parameters converts the textual configuration into runtime values.
func (c Config) Parameters() (Parameters, error) {
	normalized := c.Normalise()
	params := Parameters{
		ListenAddress:  normalized.ListenAddress,
		DataDir:        normalized.DataDir,
		Env:            normalized.Env,
		OracleEndpoint: normalized.Vault.OracleEndpoint,
		RateLimit:      normalized.RateLimit,
		Tokens:         vault.StaticTokenRegistry{},
	}
	if normalized.Owner == "" {
		return params, fmt.Errorf("config: Owner is required")
	}
	if !ethcommon.IsHexAddress(normalized.Owner) {
		return params, fmt.Errorf("config: invalid Owner address %q", normalized.Owner)
	}
	params.Owner = ethcommon.HexToAddress(normalized.Owner)

	var err error
	if params.NativeDepositCap, err = parseAmount(normalized.Vault.NativeDepositCap); err != nil {
		return params, fmt.Errorf("config: invalid NativeDepositCap: %w", err)
	}
	if params.NativeWithdrawCap, err = parseAmount(normalized.Vault.NativeWithdrawCap); err != nil {
		return params, fmt.Errorf("config: invalid NativeWithdrawCap: %w", err)
	}
	if params.USDCap, err = parseFixedPoint(normalized.Vault.USDCap, int(vault.USDDecimals)); err != nil {
		return params, fmt.Errorf("config: invalid USDCap: %w", err)
	}
	for _, token := range normalized.Tokens {
		if token.Symbol == vault.NativeAsset {
			return params, fmt.Errorf("config: token symbol %s is reserved", vault.NativeAsset)
		}
		if _, exists := params.Tokens[token.Symbol]; exists {
			return params, fmt.Errorf("config: duplicate token %s", token.Symbol)
		}
		params.Tokens[token.Symbol] = token.Decimals
	}
	return params, nil
}

// parseAmount reads a non-negative integer amount expressed in an asset's
// smallest unit. Underscores, decimal points that resolve to an integer, and
// scientific notation ("250e18") are accepted.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	normalized := trimmed
	var exponent int64
	if idx := strings.IndexAny(normalized, "eE"); idx != -1 {
		expPart := strings.TrimSpace(normalized[idx+1:])
		if expPart == "" {
			return nil, fmt.Errorf("invalid scientific notation")
		}
		expValue, err := strconv.ParseInt(expPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid scientific notation")
		}
		exponent = expValue
		normalized = strings.TrimSpace(normalized[:idx])
	}
	normalized = strings.TrimPrefix(normalized, "+")
	if strings.HasPrefix(normalized, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	parts := strings.Split(normalized, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format")
	}
	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}
	digits := integerPart + fractionalPart
	if digits == "" {
		return big.NewInt(0), nil
	}
	if !isDigits(digits) {
		return nil, fmt.Errorf("invalid amount format")
	}
	fracLen := len(fractionalPart)
	for fracLen > 0 && len(digits) > 0 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
		fracLen--
	}
	digits = strings.TrimLeft(digits, "0")
	totalExponent := exponent - int64(fracLen)
	if totalExponent < 0 {
		return nil, fmt.Errorf("amount must be an integer")
	}
	if digits == "" {
		digits = "0"
	}
	if totalExponent > 0 {
		digits += strings.Repeat("0", int(totalExponent))
	}
	amount := new(big.Int)
	if _, ok := amount.SetString(digits, 10); !ok {
		return nil, fmt.Errorf("invalid amount value")
	}
	return amount, nil
}

// parseFixedPoint reads a non-negative decimal value into fixed point with
// the given number of decimals; extra fractional digits are rejected.
func parseFixedPoint(value string, decimals int) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	trimmed = strings.TrimPrefix(trimmed, "+")
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("value must not be negative")
	}
	parts := strings.SplitN(trimmed, ".", 2)
	integer := parts[0]
	fraction := ""
	if len(parts) == 2 {
		fraction = parts[1]
	}
	if integer == "" {
		integer = "0"
	}
	if len(fraction) > decimals {
		return nil, fmt.Errorf("at most %d fractional digits supported", decimals)
	}
	fraction += strings.Repeat("0", decimals-len(fraction))
	digits := integer + fraction
	if !isDigits(digits) {
		return nil, fmt.Errorf("invalid value format")
	}
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid value")
	}
	return amount, nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
