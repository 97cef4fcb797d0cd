package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// usdScale is the number of fixed-point decimals carried by reported prices.
const usdScale = 8

// HTTPSource polls a JSON price feed over HTTP. The endpoint is expected to
// answer GET requests with a body of the form
// {"price": "0.51", "updatedAt": 1700000000}.
type HTTPSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSource constructs a source for the provided endpoint. A nil client
// falls back to one with a conservative timeout.
func NewHTTPSource(endpoint string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPSource{endpoint: strings.TrimSpace(endpoint), client: client}
}

// Endpoint returns the configured feed URL.
func (s *HTTPSource) Endpoint() string {
	if s == nil {
		return ""
	}
	return s.endpoint
}

type feedResponse struct {
	Price     string `json:"price"`
	UpdatedAt int64  `json:"updatedAt"`
}

// LatestPrice fetches and parses the feed's current observation. Any
// transport, status, or parse failure surfaces as an error so dependent
// checks fail closed.
func (s *HTTPSource) LatestPrice() (*big.Int, time.Time, error) {
	if s == nil || s.endpoint == "" {
		return nil, time.Time{}, fmt.Errorf("oracle: endpoint not configured")
	}
	resp, err := s.client.Get(s.endpoint)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("oracle: fetch %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, time.Time{}, fmt.Errorf("oracle: feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("oracle: read feed body: %w", err)
	}
	var payload feedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("oracle: decode feed body: %w", err)
	}
	price, err := ParsePrice(payload.Price)
	if err != nil {
		return nil, time.Time{}, err
	}
	if payload.UpdatedAt <= 0 {
		return nil, time.Time{}, fmt.Errorf("oracle: feed reported zero update time")
	}
	return price, time.Unix(payload.UpdatedAt, 0).UTC(), nil
}

// ParsePrice converts a decimal USD string into 8-decimal fixed point.
// Fractional digits beyond the eighth are truncated.
func ParsePrice(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("oracle: price must not be empty")
	}
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("oracle: price must not be negative")
	}
	parts := strings.SplitN(trimmed, ".", 2)
	integer := strings.TrimPrefix(parts[0], "+")
	if integer == "" {
		integer = "0"
	}
	fraction := ""
	if len(parts) == 2 {
		fraction = parts[1]
	}
	if len(fraction) > usdScale {
		fraction = fraction[:usdScale]
	}
	fraction += strings.Repeat("0", usdScale-len(fraction))
	digits := integer + fraction
	price, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("oracle: invalid price %q", value)
	}
	return price, nil
}
