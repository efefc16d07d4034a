// Package polymarket holds the REST clients for the prediction-market venue:
// Gamma for market discovery and the CLOB for midpoints and order placement.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polycouncil/internal/crypto"
	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// DefaultExchange is the CTF exchange contract on Polygon mainnet.
const DefaultExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

const zeroAddress = "0x0000000000000000000000000000000000000000"

// ClobClient talks to the central limit order book API. Midpoint queries are
// public; PlaceOrder needs a signer.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	signer  *crypto.Signer
	sigType int

	mu   sync.Mutex
	hmac *crypto.HMACAuth
}

// ClobOption configures a ClobClient.
type ClobOption func(*ClobClient)

// WithSigner enables order placement with the given key and signature type
// (0 = EOA, 1 = proxy, 2 = safe).
func WithSigner(s *crypto.Signer, signatureType int) ClobOption {
	return func(c *ClobClient) {
		c.signer = s
		c.sigType = signatureType
	}
}

// WithRateLimit paces every request to rps per second.
func WithRateLimit(rps float64) ClobOption {
	return func(c *ClobClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClobOption {
	return func(c *ClobClient) { c.httpClient = h }
}

// NewClobClient creates a client rooted at baseURL, e.g.
// "https://clob.polymarket.com".
func NewClobClient(baseURL string, opts ...ClobOption) *ClobClient {
	c := &ClobClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Midpoint returns the order-book midpoint for a token. A missing or
// unparseable midpoint yields domain.ErrNoMidpoint.
func (c *ClobClient) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	body, err := c.do(ctx, http.MethodGet, "/midpoint?token_id="+url.QueryEscape(tokenID), nil, false)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: midpoint %s: %w", tokenID, err)
	}
	var mr midpointResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode midpoint: %w", err)
	}
	mid, err := strconv.ParseFloat(mr.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: midpoint %s: %w", tokenID, domain.ErrNoMidpoint)
	}
	return mid, nil
}

// PlaceOrder signs and posts a GTC limit order. API credentials are derived
// on first use.
func (c *ClobClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderReceipt, error) {
	if c.signer == nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: %w: no signer configured", domain.ErrMissingCredential)
	}
	auth, err := c.credentials(ctx)
	if err != nil {
		return domain.OrderReceipt{}, err
	}

	order, err := c.buildOrder(req)
	if err != nil {
		return domain.OrderReceipt{}, err
	}
	sig, err := c.signer.SignOrder(order)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: sign order: %w", err)
	}

	salt, _ := strconv.ParseInt(order.Salt, 10, 64)
	payload := postOrderRequest{
		Order: apiOrder{
			Salt:          salt,
			Maker:         order.Maker,
			Signer:        order.Signer,
			Taker:         order.Taker,
			TokenID:       order.TokenID,
			MakerAmount:   order.MakerAmount,
			TakerAmount:   order.TakerAmount,
			Expiration:    order.Expiration,
			Nonce:         order.Nonce,
			FeeRateBps:    order.FeeRateBps,
			Side:          req.Side.String(),
			SignatureType: order.SignatureType,
			Signature:     sig,
		},
		Owner:     auth.Key,
		OrderType: "GTC",
	}

	body, err := c.do(ctx, http.MethodPost, "/order", payload, true)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}
	var res APIOrderResult
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	if !res.Success {
		return domain.OrderReceipt{}, fmt.Errorf("polymarket/clob: %w: %s", domain.ErrOrderRejected, res.ErrorMsg)
	}
	return res.ToReceipt(), nil
}

// DeriveAPIKey runs the L1 auth flow and caches the returned L2 credentials.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) (*crypto.HMACAuth, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("polymarket/clob: %w: no signer configured", domain.ErrMissingCredential)
	}
	ts := time.Now().Unix()
	sig, err := c.signer.SignAuth(ts, 0)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: sign auth: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header["POLY_ADDRESS"] = []string{c.signer.Address().Hex()}
	req.Header["POLY_SIGNATURE"] = []string{sig}
	req.Header["POLY_TIMESTAMP"] = []string{strconv.FormatInt(ts, 10)}
	req.Header["POLY_NONCE"] = []string{"0"}

	body, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}
	var creds apiCredentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode credentials: %w", err)
	}
	auth := &crypto.HMACAuth{Key: creds.APIKey, Secret: creds.Secret, Passphrase: creds.Passphrase}

	c.mu.Lock()
	c.hmac = auth
	c.mu.Unlock()
	return auth, nil
}

func (c *ClobClient) credentials(ctx context.Context) (*crypto.HMACAuth, error) {
	c.mu.Lock()
	auth := c.hmac
	c.mu.Unlock()
	if auth != nil {
		return auth, nil
	}
	return c.DeriveAPIKey(ctx)
}

// buildOrder converts a price/shares request into 1e6 base-unit amounts.
// A BUY gives USDC for shares, a SELL gives shares for USDC.
func (c *ClobClient) buildOrder(req domain.OrderRequest) (crypto.Order, error) {
	if req.Price <= 0 || req.Price >= 1 || req.Shares <= 0 || req.TokenID == "" {
		return crypto.Order{}, fmt.Errorf("polymarket/clob: %w: price=%v shares=%v", domain.ErrInvalidOrder, req.Price, req.Shares)
	}
	price := math.Round(req.Price*100) / 100
	shares := math.Floor(req.Shares*100) / 100
	usdc := toUnits(shares * price)
	tokens := toUnits(shares)

	maker, taker := usdc, tokens
	if req.Side == domain.OrderSideSell {
		maker, taker = tokens, usdc
	}

	addr := c.signer.Address().Hex()
	return crypto.Order{
		Salt:          strconv.FormatInt(rand.Int64N(1<<53), 10),
		Maker:         addr,
		Signer:        addr,
		Taker:         zeroAddress,
		TokenID:       req.TokenID,
		MakerAmount:   strconv.FormatInt(maker, 10),
		TakerAmount:   strconv.FormatInt(taker, 10),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          int(req.Side),
		SignatureType: c.sigType,
	}, nil
}

func toUnits(v float64) int64 { return int64(math.Round(v * 1e6)) }

// do builds and sends a request. Authenticated requests carry L2 headers.
func (c *ClobClient) do(ctx context.Context, method, path string, payload any, auth bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		c.mu.Lock()
		h := c.hmac
		c.mu.Unlock()
		if h == nil {
			return nil, fmt.Errorf("%w: no api credentials", domain.ErrUnauthorized)
		}
		h.Apply(req, c.signer.Address().Hex(), string(raw))
	}
	return c.send(req)
}

func (c *ClobClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, body)
	}
}
