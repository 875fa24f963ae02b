// Package vipps talks to the external mobile-payment gateway: access
// token acquisition, payment creation and refunds.  Every payment call
// carries an idempotency key derived from our transaction reference so
// network-level retries can never create two gateway-side payments for
// one internal transaction.
package vipps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable wraps every gateway-side failure.  Callers compare with
// errors.Is and treat it as transient: the reservation is rolled back
// and the user may retry.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Gateway is the client surface the services depend on.  Tests stub it.
type Gateway interface {
	// CreatePayment opens a payment for the given reference and amount
	// and returns the URL the payer is redirected to.
	CreatePayment(ctx context.Context, reference string, amountCents uint32, returnURL string) (string, error)
	// Refund returns money for an authorized payment.  The refund call
	// uses "refund-<reference>" as its idempotency key.
	Refund(ctx context.Context, reference string, amountCents uint32) error
}

// Client implements Gateway against a Vipps-style ePayment HTTP API.
type Client struct {
	baseURL         string
	clientID        string
	clientSecret    string
	subscriptionKey string
	http            *http.Client
	cache           *tokenCache
}

// NewClient returns a Client with a bounded request timeout.  No call
// through this client blocks longer than the http.Client timeout.
func NewClient(baseURL, clientID, clientSecret, subscriptionKey string) *Client {
	return &Client{
		baseURL:         baseURL,
		clientID:        clientID,
		clientSecret:    clientSecret,
		subscriptionKey: subscriptionKey,
		http:            &http.Client{Timeout: 10 * time.Second},
		cache:           &tokenCache{},
	}
}

// tokenResponse mirrors the gateway's access token payload.  expires_in
// arrives as a string of seconds.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in,string"`
}

// fetchToken performs the actual token request.  Only tokenCache.get
// calls it, which guarantees a single outstanding fetch per miss.
func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accesstoken/get", nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("client_id", c.clientID)
	req.Header.Set("client_secret", c.clientSecret)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: token request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, fmt.Errorf("%w: token request status %d", ErrUnavailable, resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: token decode: %v", ErrUnavailable, err)
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty access token", ErrUnavailable)
	}
	return tr.AccessToken, time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
}

// amount is the gateway's money shape: minor units plus currency.
type amount struct {
	Currency string `json:"currency"`
	Value    uint32 `json:"value"`
}

type createPaymentRequest struct {
	Amount        amount            `json:"amount"`
	PaymentMethod map[string]string `json:"paymentMethod"`
	Reference     string            `json:"reference"`
	ReturnURL     string            `json:"returnUrl"`
	UserFlow      string            `json:"userFlow"`
}

type createPaymentResponse struct {
	RedirectURL string `json:"redirectUrl"`
	Reference   string `json:"reference"`
}

// CreatePayment opens a payment at the gateway.  The transaction
// reference is sent both in the body and as the Idempotency-Key header.
func (c *Client) CreatePayment(ctx context.Context, reference string, amountCents uint32, returnURL string) (string, error) {
	body := createPaymentRequest{
		Amount:        amount{Currency: "NOK", Value: amountCents},
		PaymentMethod: map[string]string{"type": "WALLET"},
		Reference:     reference,
		ReturnURL:     returnURL,
		UserFlow:      "WEB_REDIRECT",
	}
	var out createPaymentResponse
	if err := c.post(ctx, "/epayment/v1/payments", reference, body, &out); err != nil {
		return "", err
	}
	if out.RedirectURL == "" {
		return "", fmt.Errorf("%w: missing redirect url", ErrUnavailable)
	}
	return out.RedirectURL, nil
}

// Refund returns money for a captured payment.  The derived idempotency
// key keeps a retried refund from paying out twice.
func (c *Client) Refund(ctx context.Context, reference string, amountCents uint32) error {
	body := struct {
		ModificationAmount amount `json:"modificationAmount"`
	}{ModificationAmount: amount{Currency: "NOK", Value: amountCents}}
	path := fmt.Sprintf("/epayment/v1/payments/%s/refund", reference)
	return c.post(ctx, path, "refund-"+reference, body, nil)
}

// post sends an authenticated JSON request.  On a 401 the cached token
// is invalidated and the call retried once with a fresh token; a 401
// against the fresh token is reported as such.
func (c *Client) post(ctx context.Context, path, idempotencyKey string, body, out interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := c.cache.get(ctx, c.fetchToken)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
		req.Header.Set("Idempotency-Key", idempotencyKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.cache.invalidate()
			if attempt == 0 {
				continue
			}
			return fmt.Errorf("%w: unauthorized after token refresh", ErrUnavailable)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("%w: %s status %d", ErrUnavailable, path, resp.StatusCode)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
			}
		}
		return nil
	}
}
