package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/service/ratelimit"
	"OptPull/pkg/config"
	apphttp "OptPull/pkg/http"
	applogger "OptPull/pkg/logger"
)

const limiterKey = "broker"

// Client is the broker REST adapter implementing the Provider contract. Every
// call goes through a token-bucket rate limiter and a circuit breaker; 404s
// map to the typed "nothing listed" sentinels and never trip the breaker.
type Client struct {
	baseURL string
	apiKey  string

	capacity float64
	refill   float64

	http    *apphttp.Client
	breaker *gobreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	log     *applogger.Logger
}

var _ drepo.Provider = (*Client)(nil)

// NewClient creates a new broker Client instance.
func NewClient(cfg *config.Config, log *applogger.Logger) *Client {
	b := cfg.Broker
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "broker",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.BreakerMaxFailures
		},
		Timeout: b.BreakerCooldown,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("broker breaker state change",
				applogger.String("from", from.String()),
				applogger.String("to", to.String()))
		},
	})
	return &Client{
		baseURL:  strings.TrimRight(b.BaseURL, "/"),
		apiKey:   b.APIKey,
		capacity: b.RateCapacity,
		refill:   b.RateRefillPerSec,
		http:     apphttp.NewClient(apphttp.WithTimeout(b.Timeout)),
		breaker:  breaker,
		limiter:  ratelimit.New(),
		log:      log,
	}
}

type expiryResponse struct {
	Expiry string `json:"expiry"`
}

type instrumentRow struct {
	Symbol string  `json:"symbol"`
	Strike float64 `json:"strike"`
	Kind   string  `json:"kind"`
	Token  int64   `json:"token"`
}

type instrumentsResponse struct {
	Instruments []instrumentRow `json:"instruments"`
}

type quoteRow struct {
	LastPrice float64 `json:"ltp"`
	AvgPrice  float64 `json:"avg_price"`
	Volume    int64   `json:"volume"`
	OI        int64   `json:"oi"`
}

type quotesResponse struct {
	Quotes map[string]quoteRow `json:"quotes"`
}

// ResolveExpiry asks the broker to resolve a rule it natively understands.
func (c *Client) ResolveExpiry(ctx context.Context, index, rule string) (string, error) {
	var out expiryResponse
	status, err := c.call(ctx, apphttp.MethodGet, "/v1/options/expiry", map[string][]string{
		"index": {index},
		"rule":  {rule},
	}, nil, &out)
	if err != nil {
		return "", fmt.Errorf("resolve expiry %s/%s: %w", index, rule, err)
	}
	if status == http.StatusNotFound || out.Expiry == "" {
		return "", fmt.Errorf("resolve expiry %s/%s: no expiry listed", index, rule)
	}
	return out.Expiry, nil
}

// OptionInstruments lists the contracts for an expiry restricted to the
// requested strikes.
func (c *Client) OptionInstruments(ctx context.Context, index, date string, strikes []float64) ([]models.OptionInstrument, error) {
	req := map[string]interface{}{
		"index":   index,
		"expiry":  date,
		"strikes": strikes,
	}
	var out instrumentsResponse
	status, err := c.call(ctx, apphttp.MethodPost, "/v1/options/instruments", nil, req, &out)
	if err != nil {
		return nil, fmt.Errorf("instruments %s/%s: %w", index, date, err)
	}
	if status == http.StatusNotFound || len(out.Instruments) == 0 {
		return nil, drepo.ErrNoInstruments
	}

	instruments := make([]models.OptionInstrument, 0, len(out.Instruments))
	for _, row := range out.Instruments {
		instruments = append(instruments, models.OptionInstrument{
			Symbol: row.Symbol,
			Index:  index,
			Expiry: date,
			Strike: row.Strike,
			Kind:   row.Kind,
			Token:  row.Token,
		})
	}
	return instruments, nil
}

// EnrichWithQuotes fetches quotes for the instrument set, keyed by symbol.
// The quote's structural fields come from the broker payload, not from the
// instrument list, so downstream validation sees what was actually quoted.
func (c *Client) EnrichWithQuotes(ctx context.Context, instruments []models.OptionInstrument) (map[string]models.QuoteFields, error) {
	if len(instruments) == 0 {
		return nil, drepo.ErrNoQuotes
	}
	symbols := make([]string, 0, len(instruments))
	bySymbol := make(map[string]models.OptionInstrument, len(instruments))
	for _, in := range instruments {
		symbols = append(symbols, in.Symbol)
		bySymbol[in.Symbol] = in
	}

	var out quotesResponse
	status, err := c.call(ctx, apphttp.MethodPost, "/v1/options/quotes", nil,
		map[string]interface{}{"symbols": symbols}, &out)
	if err != nil {
		return nil, fmt.Errorf("quotes (%d symbols): %w", len(symbols), err)
	}
	if status == http.StatusNotFound || len(out.Quotes) == 0 {
		return nil, drepo.ErrNoQuotes
	}

	quotes := make(map[string]models.QuoteFields, len(out.Quotes))
	for sym, q := range out.Quotes {
		in, ok := bySymbol[sym]
		if !ok {
			continue
		}
		quotes[sym] = models.QuoteFields{
			Index:     in.Index,
			Expiry:    in.Expiry,
			Strike:    in.Strike,
			Kind:      in.Kind,
			LastPrice: q.LastPrice,
			AvgPrice:  q.AvgPrice,
			Volume:    q.Volume,
			OI:        q.OI,
		}
	}
	if len(quotes) == 0 {
		return nil, drepo.ErrNoQuotes
	}
	return quotes, nil
}

type rawResponse struct {
	status int
	body   []byte
}

// call runs one rate-limited, breaker-guarded request. 404 and other non-5xx
// statuses resolve normally so only transport failures and server errors feed
// the breaker.
func (c *Client) call(ctx context.Context, method, path string, params map[string][]string, body interface{}, dest interface{}) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.SendRequest(ctx, &apphttp.RequestOptions{
			Method:      method,
			URL:         c.baseURL + path,
			Headers:     c.headers(),
			QueryParams: params,
			Body:        body,
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("broker status %d: %s", resp.StatusCode, truncate(raw, 256))
		}
		return &rawResponse{status: resp.StatusCode, body: raw}, nil
	})
	if err != nil {
		return 0, err
	}

	r := res.(*rawResponse)
	if r.status == http.StatusNotFound {
		return r.status, nil
	}
	if r.status < 200 || r.status >= 300 {
		return r.status, fmt.Errorf("broker status %d: %s", r.status, truncate(r.body, 256))
	}
	if dest != nil && len(r.body) > 0 {
		if err := json.Unmarshal(r.body, dest); err != nil {
			return r.status, fmt.Errorf("decode response: %w", err)
		}
	}
	return r.status, nil
}

// wait blocks until a rate-limit token is available or the context ends.
func (c *Client) wait(ctx context.Context) error {
	for {
		if c.limiter.Allow(limiterKey, c.capacity, c.refill) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "... (" + strconv.Itoa(len(b)) + " bytes)"
}
