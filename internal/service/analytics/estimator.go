package analytics

import (
	"context"
	"fmt"

	"OptPull/internal/domain/models"
	"OptPull/pkg/config"
	xhttp "OptPull/pkg/http"
)

// Estimator computes implied volatility and greeks for validated quote sets.
type Estimator interface {
	EstimateIV(ctx context.Context, quotes map[string]models.QuoteFields, spot float64) (map[string]float64, error)
	EstimateGreeks(ctx context.Context, quotes map[string]models.QuoteFields, spot float64) (map[string]models.Greeks, error)
}

// HTTPEstimator talks to the external quant service over JSON POST.
type HTTPEstimator struct {
	baseURL string
	client  *xhttp.Client
}

var _ Estimator = (*HTTPEstimator)(nil)

// NewHTTPEstimator builds the estimator client with timeout and base URL from
// config. Returns nil when no service URL is configured so callers can leave
// the optional phases disabled.
func NewHTTPEstimator(cfg *config.Config) *HTTPEstimator {
	if cfg.Analytics.ServiceURL == "" {
		return nil
	}
	return &HTTPEstimator{
		baseURL: cfg.Analytics.ServiceURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(cfg.Analytics.Timeout)),
	}
}

type estimateRequest struct {
	Spot   float64                 `json:"spot"`
	Quotes []estimateRequestOption `json:"quotes"`
}

type estimateRequestOption struct {
	Symbol    string  `json:"symbol"`
	Expiry    string  `json:"expiry"`
	Strike    float64 `json:"strike"`
	Kind      string  `json:"kind"`
	LastPrice float64 `json:"ltp"`
}

type ivResponse struct {
	IVs map[string]float64 `json:"ivs"`
}

type greeksResponse struct {
	Greeks map[string]models.Greeks `json:"greeks"`
}

// EstimateIV posts the quote set and returns IV keyed by symbol.
func (e *HTTPEstimator) EstimateIV(ctx context.Context, quotes map[string]models.QuoteFields, spot float64) (map[string]float64, error) {
	var out ivResponse
	if err := e.postJSON(ctx, "/v1/iv", buildRequest(quotes, spot), &out); err != nil {
		return nil, err
	}
	return out.IVs, nil
}

// EstimateGreeks posts the quote set and returns greeks keyed by symbol.
func (e *HTTPEstimator) EstimateGreeks(ctx context.Context, quotes map[string]models.QuoteFields, spot float64) (map[string]models.Greeks, error) {
	var out greeksResponse
	if err := e.postJSON(ctx, "/v1/greeks", buildRequest(quotes, spot), &out); err != nil {
		return nil, err
	}
	return out.Greeks, nil
}

func (e *HTTPEstimator) postJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if e.client == nil || e.baseURL == "" {
		return fmt.Errorf("estimator http client not initialized")
	}
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    e.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

func buildRequest(quotes map[string]models.QuoteFields, spot float64) estimateRequest {
	req := estimateRequest{Spot: spot, Quotes: make([]estimateRequestOption, 0, len(quotes))}
	for sym, q := range quotes {
		req.Quotes = append(req.Quotes, estimateRequestOption{
			Symbol:    sym,
			Expiry:    q.Expiry,
			Strike:    q.Strike,
			Kind:      q.Kind,
			LastPrice: q.LastPrice,
		})
	}
	return req
}
