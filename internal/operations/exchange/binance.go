package exchange

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"EquityTradeBot/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Quote is one price observation. ATR is zero when the feed cannot
// supply it; trailing then falls back to fixed or percent distance.
type Quote struct {
	Price decimal.Decimal
	ATR   decimal.Decimal
}

// PriceFeed supplies the current quote for an instrument on each tick.
type PriceFeed interface {
	Current(ctx context.Context, symbol string) (Quote, error)
}

// OrderSubmitter transmits an order that already passed the risk gate
// and returns the broker reference. The engine does not retry broker
// calls itself.
type OrderSubmitter interface {
	Submit(ctx context.Context, order *models.Order) (string, error)
}

type BinanceClient struct {
	client      *binance.Client
	rateLimiter *rate.Limiter
	httpClient  *http.Client
}

func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	// Custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	client := binance.NewClient(apiKey, secretKey)
	client.HTTPClient = httpClient

	// Rate limiter: 10 requests per second with burst of 20
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	return &BinanceClient{
		client:      client,
		rateLimiter: limiter,
		httpClient:  httpClient,
	}
}

// Current fetches the latest traded price with retry and backoff. The
// exchange does not provide ATR, so quotes carry price only.
func (c *BinanceClient) Current(ctx context.Context, symbol string) (Quote, error) {
	maxRetries := 3
	backoff := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return Quote{}, err
		}

		prices, err := c.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err == nil {
			if len(prices) == 0 {
				return Quote{}, fmt.Errorf("no price returned for %s", symbol)
			}
			return parseQuote(prices[0].Price)
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * backoff
		select {
		case <-ctx.Done():
			return Quote{}, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return Quote{}, fmt.Errorf("fetch price for %s: %w", symbol, lastErr)
}

// Submit places a market order, reusing the engine's client_order_id as
// the exchange idempotency key.
func (c *BinanceClient) Submit(ctx context.Context, order *models.Order) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	side := binance.SideTypeBuy
	if order.Side == models.PositionSideShort {
		side = binance.SideTypeSell
	}

	res, err := c.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(order.Quantity.String()).
		NewClientOrderID(order.ClientOrderID).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("submit order %s: %w", order.ClientOrderID, err)
	}
	return strconv.FormatInt(res.OrderID, 10), nil
}

// parseQuote converts an exchange price string, rejecting NaN, infinite
// and non-positive values before they can reach position state.
func parseQuote(raw string) (Quote, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return Quote{}, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if !price.IsPositive() {
		return Quote{}, fmt.Errorf("non-positive price %q", raw)
	}
	return Quote{Price: price}, nil
}
