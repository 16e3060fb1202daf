package reputation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{URL: srv.URL, APIKey: "test-key", CanaryIP: "8.8.8.8", MaxAgeInDays: 30, Verbose: true})
}

func TestCheckParsesResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "test-key", r.Header.Get("Key"))
		assert.Equal(t, "1.2.3.4", r.URL.Query().Get("ipAddress"))
		assert.Equal(t, "30", r.URL.Query().Get("maxAgeInDays"))
		assert.True(t, r.URL.Query().Has("verbose"))
		_, _ = w.Write([]byte(`{"data":{"ipAddress":"1.2.3.4","isWhitelisted":false,"abuseConfidenceScore":75,"countryName":"China"}}`))
	})

	v, err := c.Check(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", v.IP)
	require.NotNil(t, v.IsWhitelisted)
	assert.False(t, *v.IsWhitelisted)
	require.NotNil(t, v.ConfidenceScore)
	assert.Equal(t, 75, *v.ConfidenceScore)
	assert.Equal(t, "China", v.Country)
}

func TestCheckNullFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"isWhitelisted":null,"abuseConfidenceScore":0,"countryName":null}}`))
	})

	v, err := c.Check(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, v.IsWhitelisted)
	require.NotNil(t, v.ConfidenceScore)
	assert.Equal(t, 0, *v.ConfidenceScore)
	assert.Equal(t, "", v.Country)
}

func TestCheckErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"errors":[]}`, ErrRateLimited},
		{"unprocessable", http.StatusUnprocessableEntity, `{"errors":[{"detail":"invalid ip"}]}`, ErrQuery},
		{"malformed", http.StatusOK, `{"data":`, ErrQuery},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			v, err := c.Check(context.Background(), "1.2.3.4")
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, "1.2.3.4", v.IP)
			assert.Nil(t, v.ConfidenceScore)
		})
	}
}

func TestCheckTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Options{URL: srv.URL, APIKey: "k"})

	_, err := c.Check(context.Background(), "1.2.3.4")
	assert.ErrorIs(t, err, ErrQuery)
}

func TestRateLimitedProbesCanary(t *testing.T) {
	var limited atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "8.8.8.8", r.URL.Query().Get("ipAddress"))
		if limited.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	ok, err := c.RateLimited(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	limited.Store(true)
	ok, err = c.RateLimited(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
