package oracle

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		fails bool
	}{
		{name: "integer", input: "1", want: "100000000"},
		{name: "fractional", input: "0.51", want: "51000000"},
		{name: "full precision", input: "1.23456789", want: "123456789"},
		{name: "extra digits truncate", input: "1.234567891234", want: "123456789"},
		{name: "leading plus", input: "+2.5", want: "250000000"},
		{name: "bare fraction", input: ".5", want: "50000000"},
		{name: "zero", input: "0", want: "0"},
		{name: "empty", input: "  ", fails: true},
		{name: "negative", input: "-1", fails: true},
		{name: "garbage", input: "abc", fails: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePrice(tc.input)
			if tc.fails {
				if err == nil {
					t.Fatalf("expected error for %q, got %s", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrice(%q): %v", tc.input, err)
			}
			if got.String() != tc.want {
				t.Fatalf("ParsePrice(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestManualFailsClosedUntilSet(t *testing.T) {
	source := NewManual()
	if _, _, err := source.LatestPrice(); err == nil {
		t.Fatal("expected error before any observation")
	}

	at := time.Unix(1_700_000_000, 0)
	source.SetPrice(big.NewInt(51_000_000), at)
	price, updatedAt, err := source.LatestPrice()
	if err != nil {
		t.Fatalf("latest price: %v", err)
	}
	if price.Int64() != 51_000_000 {
		t.Fatalf("expected 51000000, got %s", price)
	}
	if !updatedAt.Equal(at) {
		t.Fatalf("expected %v, got %v", at, updatedAt)
	}

	// Clearing the price fails closed again.
	source.SetPrice(nil, at)
	if _, _, err := source.LatestPrice(); err == nil {
		t.Fatal("expected error after price cleared")
	}
}

func TestManualCopiesPrice(t *testing.T) {
	source := NewManual()
	price := big.NewInt(100)
	source.SetPrice(price, time.Now())
	price.SetInt64(999)

	got, _, err := source.LatestPrice()
	if err != nil {
		t.Fatalf("latest price: %v", err)
	}
	if got.Int64() != 100 {
		t.Fatalf("stored price aliased the caller's value: %s", got)
	}
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": "0.51", "updatedAt": 1700000000}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, server.Client())
	price, updatedAt, err := source.LatestPrice()
	if err != nil {
		t.Fatalf("latest price: %v", err)
	}
	if price.Int64() != 51_000_000 {
		t.Fatalf("expected 51000000, got %s", price)
	}
	if updatedAt.Unix() != 1_700_000_000 {
		t.Fatalf("unexpected update time %v", updatedAt)
	}
}

func TestHTTPSourceFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{name: "server error", body: "oops", code: http.StatusInternalServerError},
		{name: "malformed json", body: "{", code: http.StatusOK},
		{name: "negative price", body: `{"price": "-1", "updatedAt": 1700000000}`, code: http.StatusOK},
		{name: "missing update time", body: `{"price": "1"}`, code: http.StatusOK},
		{name: "empty price", body: `{"updatedAt": 1700000000}`, code: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			source := NewHTTPSource(server.URL, server.Client())
			if _, _, err := source.LatestPrice(); err == nil {
				t.Fatal("expected failure to surface")
			}
		})
	}
}

func TestHTTPSourceRequiresEndpoint(t *testing.T) {
	source := NewHTTPSource("  ", nil)
	if _, _, err := source.LatestPrice(); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
