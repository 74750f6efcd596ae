// Package oracle provides the external price feed behind threshold-resolved
// markets: spot prices fetched from multiple exchanges in parallel, blended
// into a weighted average and cached per symbol.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	exchangeBinance = "binance"
	exchangeBybit   = "bybit"
	exchangeOKX     = "okx"
)

// Config carries the feed endpoints, blend weights and cache policy.
type Config struct {
	BinanceURL    string
	BybitURL      string
	OKXURL        string
	BinanceWeight int
	BybitWeight   int
	OKXWeight     int
	FetchTimeout  time.Duration
	CacheTTL      time.Duration
}

// exchangeDef describes a single price source.
type exchangeDef struct {
	name   string
	weight decimal.Decimal // 0–100
	fetch  func(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Feed fetches spot prices from the configured exchanges in parallel and
// returns the weighted average.  It satisfies the resolver's PriceFeed
// interface.  Symbols use the concatenated spot form ("BTCUSDT").
type Feed struct {
	client    *http.Client
	cfg       Config
	exchanges []exchangeDef

	mu    sync.RWMutex
	cache map[string]cacheEntry

	statusMu    sync.RWMutex
	lastSuccess map[string]time.Time
}

type cacheEntry struct {
	price decimal.Decimal
	at    time.Time
}

// NewFeed constructs a Feed from the given config.
func NewFeed(cfg Config) *Feed {
	f := &Feed{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		cfg:    cfg,
		cache:  make(map[string]cacheEntry),
		lastSuccess: map[string]time.Time{
			exchangeBinance: {},
			exchangeBybit:   {},
			exchangeOKX:     {},
		},
	}
	f.exchanges = []exchangeDef{
		{exchangeBinance, decimal.NewFromInt(int64(cfg.BinanceWeight)), f.fetchBinance},
		{exchangeBybit, decimal.NewFromInt(int64(cfg.BybitWeight)), f.fetchBybit},
		{exchangeOKX, decimal.NewFromInt(int64(cfg.OKXWeight)), f.fetchOKX},
	}
	return f
}

// Price returns the blended spot price for the symbol.  A cache entry younger
// than CacheTTL is returned immediately.  Partial exchange failures are
// tolerated by re-normalising the weights over the sources that answered; the
// call fails only when every exchange fails.
func (f *Feed) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.RLock()
	if e, ok := f.cache[symbol]; ok && time.Since(e.at) < f.cfg.CacheTTL {
		f.mu.RUnlock()
		return e.price, nil
	}
	f.mu.RUnlock()

	type result struct {
		name  string
		price decimal.Decimal
		err   error
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.client.Timeout)
	defer cancel()

	resultCh := make(chan result, len(f.exchanges))
	for _, ex := range f.exchanges {
		go func(ex exchangeDef) {
			p, err := ex.fetch(fetchCtx, symbol)
			resultCh <- result{name: ex.name, price: p, err: err}
		}(ex)
	}

	rawResults := make(map[string]result, len(f.exchanges))
	for range f.exchanges {
		r := <-resultCh
		rawResults[r.name] = r
	}

	var sumWeighted, sumWeights decimal.Decimal
	now := time.Now()
	answered := 0

	for _, ex := range f.exchanges {
		r := rawResults[ex.name]
		if r.err != nil || r.price.IsZero() {
			if r.err != nil {
				slog.Debug("exchange fetch failed", "exchange", ex.name, "symbol", symbol, "error", r.err)
			}
			continue
		}
		answered++
		sumWeighted = sumWeighted.Add(r.price.Mul(ex.weight))
		sumWeights = sumWeights.Add(ex.weight)

		f.statusMu.Lock()
		f.lastSuccess[ex.name] = now
		f.statusMu.Unlock()
	}

	if answered == 0 || sumWeights.IsZero() {
		return decimal.Zero, fmt.Errorf("oracle.Price: all exchange fetches failed for %s", symbol)
	}
	blended := sumWeighted.Div(sumWeights)

	f.mu.Lock()
	f.cache[symbol] = cacheEntry{price: blended, at: now}
	f.mu.Unlock()

	return blended, nil
}

// CachedPrice returns the most recently cached price for the symbol and true
// while the entry is within its TTL.
func (f *Feed) CachedPrice(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.cache[symbol]
	if !ok || time.Since(e.at) >= f.cfg.CacheTTL {
		return decimal.Zero, false
	}
	return e.price, true
}

// ExchangeStatus reports which exchanges answered within the last 5 seconds.
// Surfaced on the back-office health endpoint.
func (f *Feed) ExchangeStatus() map[string]bool {
	threshold := 5 * time.Second
	f.statusMu.RLock()
	defer f.statusMu.RUnlock()

	status := make(map[string]bool, len(f.lastSuccess))
	for name, t := range f.lastSuccess {
		status[name] = !t.IsZero() && time.Since(t) < threshold
	}
	return status
}

// ──────────────────────────────────────────────────────────────────────────────
// Exchange fetchers
// ──────────────────────────────────────────────────────────────────────────────

// fetchBinance:
//
//	GET /api/v3/ticker/price?symbol=BTCUSDT
//	{"symbol":"BTCUSDT","price":"87350.00"}
func (f *Feed) fetchBinance(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := f.cfg.BinanceURL + "/api/v3/ticker/price?symbol=" + symbol
	body, err := f.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: %w", err)
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("binance parse: %w", err)
	}
	if resp.Price == "" {
		return decimal.Zero, fmt.Errorf("binance: empty price field")
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance decimal: %w", err)
	}
	return price, nil
}

// fetchBybit:
//
//	GET /v5/market/tickers?category=spot&symbol=BTCUSDT
//	{"result":{"list":[{"lastPrice":"87350.00",...}]}}
func (f *Feed) fetchBybit(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := f.cfg.BybitURL + "/v5/market/tickers?category=spot&symbol=" + symbol
	body, err := f.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bybit: %w", err)
	}

	var resp struct {
		Result struct {
			List []struct {
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("bybit parse: %w", err)
	}
	if len(resp.Result.List) == 0 || resp.Result.List[0].LastPrice == "" {
		return decimal.Zero, fmt.Errorf("bybit: empty result list")
	}
	price, err := decimal.NewFromString(resp.Result.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bybit decimal: %w", err)
	}
	return price, nil
}

// fetchOKX uses dashed instrument ids ("BTC-USDT"), derived from the spot
// symbol:
//
//	GET /api/v5/market/ticker?instId=BTC-USDT
//	{"data":[{"last":"87350.00",...}]}
func (f *Feed) fetchOKX(ctx context.Context, symbol string) (decimal.Decimal, error) {
	instID := strings.Replace(symbol, "USDT", "-USDT", 1)
	url := f.cfg.OKXURL + "/api/v5/market/ticker?instId=" + instID
	body, err := f.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("okx: %w", err)
	}

	var resp struct {
		Data []struct {
			Last string `json:"last"`
		} `json:"data"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("okx parse: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].Last == "" {
		return decimal.Zero, fmt.Errorf("okx: empty data field")
	}
	price, err := decimal.NewFromString(resp.Data[0].Last)
	if err != nil {
		return decimal.Zero, fmt.Errorf("okx decimal: %w", err)
	}
	return price, nil
}

// doGet performs an HTTP GET and returns the body bytes, failing on any
// non-200 status.
func (f *Feed) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "binarymarket/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
