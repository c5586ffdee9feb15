package uniswap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"lp-hedge-bot/internal/config"

	"go.uber.org/zap"
)

const positionsQuery = `
query Positions($owner: Bytes!, $first: Int!, $lastId: ID) {
  positions(
    first: $first
    where: { owner: $owner, id_gt: $lastId }
    orderBy: id
    orderDirection: asc
  ) {
    id
    liquidity
    depositedToken0
    depositedToken1
    withdrawnToken0
    withdrawnToken1
    collectedFeesToken0
    collectedFeesToken1
    pool {
      id
      feeTier
      sqrtPrice
      tick
      token0 { id symbol decimals }
      token1 { id symbol decimals }
    }
    tickLower { tickIdx }
    tickUpper { tickIdx }
  }
}
`

const poolQuery = `
query Pool($poolId: ID!) {
  pool(id: $poolId) {
    id
    sqrtPrice
    tick
    liquidity
    token0 { symbol decimals }
    token1 { symbol decimals }
  }
}
`

// Client queries a Uniswap v3 subgraph. Every fetch failure comes back as an
// error wrapping ErrDataUnavailable; the caller decides whether that means
// safe mode, never this client.
type Client struct {
	url        string
	http       *http.Client
	log        *zap.Logger
	maxRetry   int
	retryDelay time.Duration
	pageSize   int
}

func NewClient(cfg config.SubgraphConfig, log *zap.Logger) *Client {
	return &Client{
		url:        cfg.URL,
		http:       &http.Client{Timeout: cfg.Timeout},
		log:        log,
		maxRetry:   cfg.MaxRetry,
		retryDelay: cfg.RetryDelay,
		pageSize:   cfg.PageSize,
	}
}

// Positions fetches all LP positions owned by owner, paginating via id_gt.
func (c *Client) Positions(ctx context.Context, owner string) ([]Position, error) {
	all := make([]Position, 0)
	lastID := ""
	for {
		vars := map[string]any{"owner": strings.ToLower(owner), "first": c.pageSize, "lastId": lastID}
		payload, err := c.query(ctx, positionsQuery, vars)
		if err != nil {
			return nil, err
		}
		raw, err := dataField(payload, "positions")
		if err != nil {
			return nil, err
		}
		page, ok := toSlice(raw)
		if !ok {
			return nil, fmt.Errorf("positions field is not a list: %w", ErrDataUnavailable)
		}
		pageLast := ""
		for _, item := range page {
			m, ok := toMap(item)
			if !ok {
				continue
			}
			pos := parsePosition(m)
			all = append(all, pos)
			pageLast = pos.ID
		}
		if len(page) < c.pageSize || pageLast == "" {
			return all, nil
		}
		lastID = pageLast
	}
}

// PoolState fetches the current state of one pool.
func (c *Client) PoolState(ctx context.Context, poolID string) (*Pool, error) {
	if poolID == "" {
		return nil, fmt.Errorf("pool id is empty: %w", ErrDataUnavailable)
	}
	payload, err := c.query(ctx, poolQuery, map[string]any{"poolId": poolID})
	if err != nil {
		return nil, err
	}
	raw, err := dataField(payload, "pool")
	if err != nil {
		return nil, err
	}
	m, ok := toMap(raw)
	if !ok {
		return nil, fmt.Errorf("pool payload is not an object: %w", ErrDataUnavailable)
	}
	return parsePool(m), nil
}

func (c *Client) query(ctx context.Context, query string, vars map[string]any) (map[string]any, error) {
	var lastErr error
	delay := c.retryDelay
	attempts := c.maxRetry
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
		payload, err := c.post(ctx, query, vars)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		c.log.Warn("subgraph query failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("subgraph unreachable after %d attempts: %w: %w", attempts, lastErr, ErrDataUnavailable)
}

func (c *Client) post(ctx context.Context, query string, vars map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(apiKeyFromEnv()); key != "" {
		req.Header.Set("apikey", key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sample, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(sample)))
	}
	ctype := resp.Header.Get("Content-Type")
	if !strings.Contains(ctype, "application/json") {
		return nil, fmt.Errorf("unexpected content-type %q", ctype)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if errs, ok := payload["errors"]; ok {
		return nil, fmt.Errorf("subgraph errors: %s", truncateAny(errs))
	}
	return payload, nil
}

// dataField walks payload.data.<field>, treating any missing hop as an
// unavailable result rather than panicking on a nil map.
func dataField(payload map[string]any, field string) (any, error) {
	data, ok := toMap(payload["data"])
	if !ok {
		return nil, fmt.Errorf("payload has no data object: %w", ErrDataUnavailable)
	}
	value, ok := data[field]
	if !ok || value == nil {
		return nil, fmt.Errorf("payload missing data.%s: %w", field, ErrDataUnavailable)
	}
	return value, nil
}

func truncateAny(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "unprintable"
	}
	s := string(raw)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func apiKeyFromEnv() string {
	return os.Getenv("THEGRAPH_API_KEY")
}
