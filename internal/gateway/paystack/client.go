package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"eventpass/internal/status"
	"eventpass/utils"
)

type ClientConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	SecretKey string `json:"secretKey" mapstructure:"secret_key"`

	// Timeout bounds every outbound call. Zero means 10s.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

type Client struct {
	// baseURL is the base url of the Paystack API.
	baseURL string

	// secretKey authenticates every request as a bearer token.
	secretKey string

	// cb guards the gateway against hammering a degraded upstream.
	cb *utils.CircuitBreaker

	// hc is the http client.
	hc *http.Client
}

// NewClient creates a new Paystack client with a bounded request timeout.
func NewClient(c *ClientConfig) *Client {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   c.BaseURL,
		secretKey: c.SecretKey,
		cb:        utils.NewCircuitBreaker("paystack"),
		hc: &http.Client{
			Timeout: timeout,
		},
	}
}

// InitializeTransaction requests a hosted checkout session with the split
// applied. No local state is written; abandoning the checkout leaves no
// residue on our side.
func (c *Client) InitializeTransaction(ctx context.Context, f *InitializeRequest) (*Session, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("initializeTransaction: json.Marshal: %w", err)
	}

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/transaction/initialize"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("initializeTransaction: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("initializeTransaction: resp.StatusCode: 401 => Unauthorized")
	}

	var reply struct {
		Status  bool    `json:"status"`
		Message string  `json:"message"`
		Data    Session `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("initializeTransaction: json.Decode: %w", err)
	}
	if !reply.Status {
		return nil, fmt.Errorf("initializeTransaction: reply.Message: %v", reply.Message)
	}

	return &reply.Data, nil
}

// VerifyTransaction fetches the authoritative transaction state from the
// gateway. Client-supplied success flags are never trusted; this call is
// the only source of truth at settlement.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/transaction/verify/%s", _baseURL.String(), url.PathEscape(reference)), nil)
	if err != nil {
		return nil, fmt.Errorf("verifyTransaction: http.NewReq: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("verifyTransaction: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &status.VerificationError{Status: "not_found"}
	}

	var reply struct {
		Status  bool      `json:"status"`
		Message string    `json:"message"`
		Data    txPayload `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("verifyTransaction: json.Decode: %w", err)
	}
	if !reply.Status {
		return nil, fmt.Errorf("verifyTransaction: reply.Message: %v", reply.Message)
	}

	transaction, err := reply.Data.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("verifyTransaction: reply.Data: %w", err)
	}

	return transaction, nil
}

// do runs one request through the circuit breaker and maps transport
// timeouts to the retriable taxonomy error.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	result, err := c.cb.Execute(ctx, func() (any, error) {
		return c.hc.Do(req)
	})
	if err != nil {
		if isTimeout(err) {
			return nil, status.ErrGatewayTimeout
		}
		return nil, fmt.Errorf("paystack: http.Do: %w", err)
	}
	return result.(*http.Response), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
