package signer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestClient wires the client against a test server with sleeps recorded
// instead of slept.
func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.URL, "test-key", nil)
	slept := &[]time.Duration{}
	client.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return client, slept
}

func TestClientHonorsRetryAfterOn429(t *testing.T) {
	var calls atomic.Int32
	client, slept := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(RemoteWallet{ID: "w1", Address: "0xabc", Ready: true})
	}))

	wallet, err := client.CreateWallet(context.Background())
	require.NoError(t, err)
	require.Equal(t, "w1", wallet.ID)
	require.Equal(t, int32(2), calls.Load())
	require.Len(t, *slept, 1)
	require.GreaterOrEqual(t, (*slept)[0], 3*time.Second)
}

func TestClientRateLimitedAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	client, slept := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.CreateWallet(context.Background())
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, int32(maxRetries+1), calls.Load())
	// Missing Retry-After falls back to the default wait.
	for _, d := range *slept {
		require.Equal(t, defaultRetryAfter, d)
	}
}

func TestClientBacksOffExponentiallyOn5xx(t *testing.T) {
	var calls atomic.Int32
	client, slept := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"signature": "0xsig"})
	}))

	sig, err := client.SignMessage(context.Background(), "w1", "hello", EncodingUTF8)
	require.NoError(t, err)
	require.Equal(t, "0xsig", sig)
	require.Equal(t, []time.Duration{backoffBase, 2 * backoffBase}, *slept)
}

func TestClientPropagatesTerminalStatusError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	_, err := client.CreateWallet(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestClientDoesNotRetryMalformedSuccessBody(t *testing.T) {
	var calls atomic.Int32
	client, slept := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("{not json"))
	}))

	// Wallet creation is not idempotent on the vendor side, so a decode
	// failure after a 2xx must not trigger a second POST.
	_, err := client.CreateWallet(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "decode response")
	require.Equal(t, int32(1), calls.Load())
	require.Empty(t, *slept)
}

func TestClientAttachesBearerCredential(t *testing.T) {
	var gotAuth, gotBody string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotBody = body["message"]
		_ = json.NewEncoder(w).Encode(map[string]string{"signature": "0xsig"})
	}))

	_, err := client.SignMessage(context.Background(), "w1", "hello", EncodingUTF8)
	require.NoError(t, err)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "hello", gotBody)
}

func TestClientSleepPreemptedByCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.URL, "test-key", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreateWallet(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecidePolicy(t *testing.T) {
	cause := errors.New("upstream down")
	cases := []struct {
		name       string
		attempt    int
		status     int
		retryAfter string
		wantRetry  bool
		wantDelay  time.Duration
		wantErr    error
	}{
		{name: "429 uses retry-after", attempt: 0, status: 429, retryAfter: "3", wantRetry: true, wantDelay: 3 * time.Second},
		{name: "429 defaults without header", attempt: 1, status: 429, wantRetry: true, wantDelay: defaultRetryAfter},
		{name: "429 exhausted", attempt: maxRetries, status: 429, wantErr: ErrRateLimited},
		{name: "500 first backoff", attempt: 0, status: 500, wantRetry: true, wantDelay: backoffBase},
		{name: "500 second backoff", attempt: 1, status: 500, wantRetry: true, wantDelay: 2 * backoffBase},
		{name: "transport error retried", attempt: 2, status: 0, wantRetry: true, wantDelay: 4 * backoffBase},
		{name: "exhausted keeps cause", attempt: maxRetries, status: 500, wantErr: cause},
		{name: "2xx decode failure terminal", attempt: 0, status: 200, wantErr: cause},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decide(tc.attempt, tc.status, tc.retryAfter, cause)
			require.Equal(t, tc.wantRetry, got.retry)
			if tc.wantRetry {
				require.Equal(t, tc.wantDelay, got.delay)
				return
			}
			require.ErrorIs(t, got.err, tc.wantErr)
		})
	}
}
