package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	requestTimeout    = 15 * time.Second
	maxRetries        = 3
	backoffBase       = 500 * time.Millisecond
	defaultRetryAfter = 2 * time.Second
)

// RemoteWallet is the vendor's view of a delegated wallet.
type RemoteWallet struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Ready   bool   `json:"ready"`
}

// Message encodings accepted by the remote signing endpoint.
const (
	EncodingUTF8 = "utf-8"
	EncodingHex  = "hex"
)

// RemoteClient isolates the vendor-specific wire protocol of the custodial
// signing service. Swapping vendors only replaces this component.
type RemoteClient interface {
	CreateWallet(ctx context.Context) (RemoteWallet, error)
	GetWallet(ctx context.Context, walletID string) (RemoteWallet, error)
	SignMessage(ctx context.Context, walletID, payload, encoding string) (string, error)
	SignTypedData(ctx context.Context, walletID string, data TypedData) (string, error)
	SendTransaction(ctx context.Context, walletID string, tx TransactionRequest) (TransactionResult, error)
	Ping(ctx context.Context) error
}

// StatusError reports a non-success HTTP status from the remote service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signing service returned %d: %s", e.Status, e.Body)
}

// retryDecision is the outcome of one attempt: stop with a terminal error,
// or wait and try again.
type retryDecision struct {
	retry bool
	delay time.Duration
	err   error
}

// decide maps one attempt's outcome to a retry decision. It is a pure
// function of the attempt number, the HTTP status (0 for transport errors)
// and the Retry-After header, so the policy is testable without a server.
func decide(attempt, status int, retryAfter string, cause error) retryDecision {
	if status == http.StatusTooManyRequests {
		if attempt >= maxRetries {
			return retryDecision{err: ErrRateLimited}
		}
		delay := defaultRetryAfter
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			delay = time.Duration(secs) * time.Second
		}
		return retryDecision{retry: true, delay: delay}
	}
	if status >= 200 && status <= 299 {
		// The request already succeeded; the body was unusable. Retrying
		// would re-issue a possibly non-idempotent call for nothing.
		return retryDecision{err: cause}
	}
	if attempt >= maxRetries {
		// Propagate the underlying failure unchanged; classification is
		// the caller's job.
		return retryDecision{err: cause}
	}
	return retryDecision{retry: true, delay: backoffBase << attempt}
}

// HTTPClient executes calls against the remote signing service with a fixed
// per-attempt timeout, exponential backoff and rate-limit aware retry.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	metrics *Metrics

	// sleep is overridable in tests so retry waits do not slow the suite.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient builds a client for the signing service at baseURL,
// authenticated with a static bearer credential.
func NewHTTPClient(baseURL, apiKey string, metrics *Metrics) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		metrics: metrics,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CreateWallet provisions a new delegated wallet.
func (c *HTTPClient) CreateWallet(ctx context.Context) (RemoteWallet, error) {
	var wallet RemoteWallet
	err := c.do(ctx, http.MethodPost, "/v1/wallets", map[string]any{"chain_type": "ethereum"}, &wallet)
	return wallet, err
}

// GetWallet polls the wallet's provisioning state.
func (c *HTTPClient) GetWallet(ctx context.Context, walletID string) (RemoteWallet, error) {
	var wallet RemoteWallet
	err := c.do(ctx, http.MethodGet, "/v1/wallets/"+walletID, nil, &wallet)
	return wallet, err
}

// SignMessage signs a raw message payload with the given encoding.
func (c *HTTPClient) SignMessage(ctx context.Context, walletID, payload, encoding string) (string, error) {
	var out struct {
		Signature string `json:"signature"`
	}
	body := map[string]any{"message": payload, "encoding": encoding}
	if err := c.do(ctx, http.MethodPost, "/v1/wallets/"+walletID+"/sign", body, &out); err != nil {
		return "", err
	}
	return out.Signature, nil
}

// SignTypedData signs an EIP-712 payload, passed through verbatim.
func (c *HTTPClient) SignTypedData(ctx context.Context, walletID string, data TypedData) (string, error) {
	var out struct {
		Signature string `json:"signature"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/wallets/"+walletID+"/sign-typed-data", data, &out); err != nil {
		return "", err
	}
	return out.Signature, nil
}

// SendTransaction signs and broadcasts a transaction.
func (c *HTTPClient) SendTransaction(ctx context.Context, walletID string, tx TransactionRequest) (TransactionResult, error) {
	var out TransactionResult
	if err := c.do(ctx, http.MethodPost, "/v1/wallets/"+walletID+"/transactions", tx, &out); err != nil {
		return TransactionResult{}, err
	}
	if out.Status != TxStatusConfirmed {
		out.Status = TxStatusSubmitted
	}
	return out, nil
}

// Ping performs a lightweight reachability check.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

// do executes one logical request, retrying per the policy in decide.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	for attempt := 0; ; attempt++ {
		status, retryAfter, err := c.attempt(ctx, method, path, body, out)
		if err == nil {
			c.metrics.observeRequest(path, attempt)
			return nil
		}

		decision := decide(attempt, status, retryAfter, err)
		if !decision.retry {
			c.metrics.incFailure(path, status)
			return decision.err
		}
		c.metrics.incRetry(path, status)
		if err := c.sleep(ctx, decision.delay); err != nil {
			return err
		}
	}
}

// attempt performs a single HTTP exchange. A zero status means the failure
// happened before a response was received.
func (c *HTTPClient) attempt(ctx context.Context, method, path string, body, out any) (int, string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, resp.Header.Get("Retry-After"), &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return resp.StatusCode, "", nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, "", fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, "", nil
}
