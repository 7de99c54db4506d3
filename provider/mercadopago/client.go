// Package mercadopago implements paywall.PaymentProvider against the
// MercadoPago REST API. Only the two calls the payment lifecycle needs are
// covered: opening a checkout preference and fetching a payment by id.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-paywall"
)

// DefaultBaseURL is the production API host
const DefaultBaseURL = "https://api.mercadopago.com"

const defaultTimeout = 15 * time.Second

// Client is a thin REST client authenticated with a server-side access token.
// It is safe for concurrent use.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at a different host, e.g. a sandbox or a
// test server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		accessToken: accessToken,
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// CreatePreference opens a checkout preference and returns its id along with
// the hosted checkout URL the buyer should be redirected to.
func (c *Client) CreatePreference(ctx context.Context, req paywall.PreferenceRequest) (*paywall.Preference, error) {
	body, err := c.do(ctx, http.MethodPost, "/checkout/preferences", req)
	if err != nil {
		return nil, err
	}

	var res preferenceResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode preference response")
	}

	if res.ID == "" || res.InitPoint == "" {
		return nil, errors.New("preference response missing id or init_point", errors.CategoryOperation)
	}

	return &paywall.Preference{
		ID:          res.ID,
		RedirectURL: res.InitPoint,
	}, nil
}

// FetchPayment retrieves the authoritative state of a payment. The raw
// response body is kept alongside the extracted fields for auditing.
func (c *Client) FetchPayment(ctx context.Context, id string) (*paywall.ProviderPayment, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode payment response")
	}

	payment := &paywall.ProviderPayment{
		ID:  id,
		Raw: raw,
	}

	if status, ok := raw["status"].(string); ok {
		payment.Status = paywall.PaymentStatus(status)
	}

	if amount, ok := raw["transaction_amount"].(float64); ok {
		payment.Amount = amount
	}

	if metadata, ok := raw["metadata"].(map[string]any); ok {
		payment.Metadata = metadata
	}

	return payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode request payload")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build provider request")
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "provider request failed").
			WithMetadata(map[string]any{
				"method": method,
				"path":   path,
			})
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read provider response")
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// the rendered message is sanitized, the text code keeps
		// the status visible to callers and logs
		return nil, errors.New(
			fmt.Sprintf("provider responded with status %d", res.StatusCode),
			errors.CategoryOperation,
		).WithTextCode(fmt.Sprintf("PROVIDER_HTTP_%d", res.StatusCode)).
			WithMetadata(map[string]any{
				"method": method,
				"path":   path,
				"status": res.StatusCode,
				"body":   string(body),
			})
	}

	return body, nil
}

var _ paywall.PaymentProvider = (*Client)(nil)
