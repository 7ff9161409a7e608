package position

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const wallet = "0x1111111111111111111111111111111111111111"

func TestHTTPSourceLending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/positions/"+wallet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"collateral":"9.422","debt":14974.25,"healthFactor":1.31}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/positions/{address}", srv.Client())
	pos, err := src.Lending(context.Background(), wallet)
	if err != nil {
		t.Fatalf("Lending() error = %v", err)
	}
	if pos.Collateral != 9.422 || pos.Debt != 14974.25 || pos.HealthFactor != 1.31 {
		t.Errorf("unexpected position %+v", pos)
	}
}

func TestHTTPSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		address string
	}{
		{"Bad address", http.StatusOK, `{}`, "0x123"},
		{"Server error", http.StatusInternalServerError, `{}`, wallet},
		{"Missing field", http.StatusOK, `{"collateral":1,"debt":2}`, wallet},
		{"Negative debt", http.StatusOK, `{"collateral":1,"debt":-2,"healthFactor":1}`, wallet},
		{"Garbage", http.StatusOK, `not json`, wallet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPSource(srv.URL+"/{address}", srv.Client()).Lending(context.Background(), tt.address)
			if err == nil {
				t.Errorf("expected an error")
			}
		})
	}

	_, err := NewHTTPSource("http://example.invalid/{address}", nil).Lending(context.Background(), "nope")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestLookupNeverFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := Lookup(context.Background(), NewHTTPSource(srv.URL+"/{address}", srv.Client()), wallet, nil)
	if res.Available || res.Lending != nil {
		t.Errorf("expected unavailable result, got %+v", res)
	}
	if !strings.Contains(res.Warning, "manually") {
		t.Errorf("unexpected warning %q", res.Warning)
	}

	if res := Lookup(context.Background(), nil, wallet, nil); res.Available || res.Warning == "" {
		t.Errorf("expected warning without a source, got %+v", res)
	}
}

func TestReconcile(t *testing.T) {
	pos := LendingPosition{Collateral: 9.422, Debt: 14974.25, HealthFactor: 1.30}
	d := Reconcile(pos, 2500, 0.83)
	if math.Abs(d.Computed-1.3056) > 1e-3 {
		t.Errorf("computed = %v, expected about 1.306", d.Computed)
	}
	if math.Abs(d.Delta-(d.Computed-1.30)) > 1e-12 {
		t.Errorf("delta = %v", d.Delta)
	}

	d = Reconcile(LendingPosition{Collateral: 1}, 2500, 0.83)
	if !math.IsInf(d.Computed, 1) || d.Delta != 0 {
		t.Errorf("expected infinite health and zero delta, got %+v", d)
	}
}

func TestTickToPrice(t *testing.T) {
	tests := []struct {
		name     string
		tick     int
		dec0     int
		dec1     int
		expected float64
	}{
		{"Zero tick", 0, 18, 18, 1},
		{"Positive tick", 10000, 18, 18, math.Pow(1.0001, 10000)},
		{"Decimal adjustment", 0, 18, 6, 1e12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TickToPrice(tt.tick, tt.dec0, tt.dec1)
			if math.Abs(got-tt.expected)/tt.expected > 1e-12 {
				t.Errorf("TickToPrice() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestRangeFromTicks(t *testing.T) {
	// WETH/USDC style pool: token0 has 6 decimals, token1 has 18, and the
	// human price is the inverse.
	r, err := RangeFromTicks(196000, 197000, 6, 18, true)
	if err != nil {
		t.Fatalf("RangeFromTicks() error = %v", err)
	}
	if r.Low >= r.High {
		t.Errorf("bounds not ordered: %+v", r)
	}
	if r.Low < 2500 || r.High > 3200 {
		t.Errorf("unexpected ETH price range %+v", r)
	}
	if !r.Contains((r.Low + r.High) / 2) {
		t.Errorf("midpoint should be inside the range")
	}

	if _, err := RangeFromTicks(10, 10, 18, 18, false); err == nil {
		t.Errorf("expected error for an empty tick range")
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"Lower case", wallet, false},
		{"Mixed case", "0xAbCdEf0123456789abcdef0123456789ABCDEF01", false},
		{"Missing prefix", strings.TrimPrefix(wallet, "0x"), true},
		{"Too short", "0x1234", true},
		{"Non hex", "0x111111111111111111111111111111111111111g", true},
		{"Empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("expected errors.Is(err, ErrInvalidAddress), got %v", err)
			}
		})
	}
}
