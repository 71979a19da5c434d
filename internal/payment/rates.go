package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Prices maps a crypto currency to its price in each fiat currency.
type Prices map[Currency]map[Currency]decimal.Decimal

func (p Prices) Price(crypto, fiat Currency) (decimal.Decimal, error) {
	if byFiat, ok := p[crypto]; ok {
		if v, ok := byFiat[fiat]; ok && v.IsPositive() {
			return v, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no %s price in %s", crypto, fiat)
}

// bridge is the stablecoin used to cross fiat currencies.
const bridge = USDT

// Convert moves a fiat amount into another fiat currency through the
// bridge coin's quotes.
func (p Prices) Convert(amount decimal.Decimal, from, to Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	inFrom, err := p.Price(bridge, from)
	if err != nil {
		return decimal.Zero, err
	}
	inTo, err := p.Price(bridge, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(inTo).Div(inFrom).Round(2), nil
}

type RateSource interface {
	Prices(ctx context.Context) (Prices, error)
}

var coinIDs = map[Currency]string{
	BTC:  "bitcoin",
	ETH:  "ethereum",
	USDT: "tether",
	USDC: "usd-coin",
}

// CoinGecko reads spot prices from a CoinGecko compatible simple/price endpoint.
type CoinGecko struct {
	baseURL string
	client  *http.Client
}

func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	return &CoinGecko{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *CoinGecko) Prices(ctx context.Context) (Prices, error) {
	ids := make([]string, 0, len(CryptoCurrencies))
	for _, cur := range CryptoCurrencies {
		ids = append(ids, coinIDs[cur])
	}
	vs := make([]string, 0, len(FiatCurrencies))
	for _, cur := range FiatCurrencies {
		vs = append(vs, strings.ToLower(string(cur)))
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", strings.Join(vs, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}

	out := make(Prices, len(CryptoCurrencies))
	for _, cur := range CryptoCurrencies {
		quotes, ok := body[coinIDs[cur]]
		if !ok {
			continue
		}
		byFiat := make(map[Currency]decimal.Decimal, len(quotes))
		for k, v := range quotes {
			byFiat[Currency(strings.ToUpper(k))] = v
		}
		out[cur] = byFiat
	}
	return out, nil
}

// RateCache stores a recent Prices snapshot.
type RateCache interface {
	GetPrices(ctx context.Context) (Prices, bool, error)
	SetPrices(ctx context.Context, p Prices, ttl time.Duration) error
}

// CachedRates serves prices from the cache and refreshes it from the source
// on a miss. Cache failures fall through to the source.
type CachedRates struct {
	source RateSource
	cache  RateCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRates(source RateSource, cache RateCache, ttl time.Duration, logger *zap.Logger) *CachedRates {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRates{source: source, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedRates) Prices(ctx context.Context) (Prices, error) {
	if c.cache != nil {
		p, ok, err := c.cache.GetPrices(ctx)
		if err != nil {
			c.logger.Warn("rate cache read failed", zap.Error(err))
		} else if ok {
			return p, nil
		}
	}

	p, err := c.source.Prices(ctx)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.SetPrices(ctx, p, c.ttl); err != nil {
			c.logger.Warn("rate cache write failed", zap.Error(err))
		}
	}
	return p, nil
}
