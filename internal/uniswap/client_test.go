package uniswap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lp-hedge-bot/internal/config"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.SubgraphConfig{
		URL:        srv.URL,
		Timeout:    2 * time.Second,
		MaxRetry:   2,
		RetryDelay: time.Millisecond,
		PageSize:   2,
	}
	return NewClient(cfg, zap.NewNop()), srv
}

func TestPositionsNullData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": null}`)
	})
	_, err := client.Positions(context.Background(), "0x0")
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestPositionsEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"positions": []}}`)
	})
	got, err := client.Positions(context.Background(), "0x0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestPositionsGraphQLErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"errors": [{"message": "boom"}]}`)
	})
	_, err := client.Positions(context.Background(), "0x0")
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestPositionsBadContentType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>gateway error</html>")
	})
	_, err := client.Positions(context.Background(), "0x0")
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestPositionsPaginates(t *testing.T) {
	var lastIDs []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		lastID, _ := req.Variables["lastId"].(string)
		lastIDs = append(lastIDs, lastID)
		w.Header().Set("Content-Type", "application/json")
		if lastID == "" {
			fmt.Fprint(w, `{"data": {"positions": [{"id": "p1", "liquidity": "10"}, {"id": "p2", "liquidity": "20"}]}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"positions": [{"id": "p3", "liquidity": "30"}]}}`)
	})
	got, err := client.Positions(context.Background(), "0xABC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(got))
	}
	if len(lastIDs) != 2 || lastIDs[1] != "p2" {
		t.Fatalf("expected second page keyed by p2, got %v", lastIDs)
	}
}

func TestPositionsRetriesThenSucceeds(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"positions": []}}`)
	})
	if _, err := client.Positions(context.Background(), "0x0"); err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestPoolStateParsesNumericStrings(t *testing.T) {
	sqrtX96 := "79228162514264337593543950336" // 2^96, price ratio 1
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data": {"pool": {
			"id": "0xdeadbeef",
			"sqrtPrice": %q,
			"tick": "0",
			"token0": {"symbol": "WETH", "decimals": "18"},
			"token1": {"symbol": "USDC", "decimals": "6"}
		}}}`, sqrtX96)
	})
	pool, err := client.PoolState(context.Background(), "0xdeadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.SqrtPrice == nil || *pool.SqrtPrice != 1 {
		t.Fatalf("expected normalized sqrt price 1, got %v", pool.SqrtPrice)
	}
	if pool.Token0.Symbol != "WETH" || pool.Token0.Decimals != 18 {
		t.Fatalf("token0 parsed wrong: %+v", pool.Token0)
	}
	if pool.Tick == nil || *pool.Tick != 0 {
		t.Fatalf("tick parsed wrong: %v", pool.Tick)
	}
}

func TestPoolStateMissingPool(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"pool": null}}`)
	})
	_, err := client.PoolState(context.Background(), "0xmissing")
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestPositionParseMalformedNumbers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"positions": [{
			"id": "p1",
			"liquidity": "not-a-number",
			"tickLower": {"tickIdx": "-100"},
			"tickUpper": {"tickIdx": "100"},
			"depositedToken0": "1.5"
		}]}}`)
	})
	got, err := client.Positions(context.Background(), "0x0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 position, got %d", len(got))
	}
	if got[0].Liquidity != nil {
		t.Fatalf("expected malformed liquidity to parse as absent, got %v", *got[0].Liquidity)
	}
	if got[0].TickLower == nil || *got[0].TickLower != -100 {
		t.Fatalf("tickLower parsed wrong: %v", got[0].TickLower)
	}
	if got[0].Deposited0 != 1.5 {
		t.Fatalf("deposited0 parsed wrong: %g", got[0].Deposited0)
	}
}
