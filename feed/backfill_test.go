package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpaquero/alpaquero/market"
)

func testBackfillClient(serverURL, token string) *BackfillClient {
	return &BackfillClient{
		baseURL:    serverURL,
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func wireBar(sym, ts, o, h, l, c, v string) barMessage {
	return barMessage{Symbol: sym, Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestNewBackfillClient(t *testing.T) {
	client := NewBackfillClient("https://bars.example.com/", "test-token")
	assert.Equal(t, "https://bars.example.com", client.baseURL)
	assert.Equal(t, "test-token", client.token)
	assert.NotNil(t, client.httpClient)
}

func TestFetchSeries(t *testing.T) {
	mock := barsResponse{
		Symbol: "AAPL",
		Bars: []barMessage{
			wireBar("AAPL", "2024-01-02T09:30:00Z", "100", "101", "99.5", "100.5", "1200"),
			wireBar("AAPL", "2024-01-02T09:31:00Z", "100.5", "102", "100", "101.5", "900"),
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/bars/AAPL", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-02-01T00:00:00Z", r.URL.Query().Get("to"))
		assert.Empty(t, r.URL.Query().Get("limit"))

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(mock)
	}))
	defer server.Close()

	client := testBackfillClient(server.URL, "test-token")

	s, err := client.FetchSeries(context.Background(), BarsRequest{
		Symbol: "AAPL",
		From:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	b := s.At(0)
	assert.Equal(t, "AAPL", b.Symbol)
	assert.Equal(t, 100.0, b.Open)
	assert.Equal(t, 101.0, b.High)
	assert.Equal(t, 99.5, b.Low)
	assert.Equal(t, 100.5, b.Close)
	assert.Equal(t, 1200.0, b.Volume)
	assert.True(t, b.Time.Equal(time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)))

	assert.Equal(t, 101.5, s.At(1).Close)
}

func TestFetchSeriesSymbolHandling(t *testing.T) {
	// Servers may omit the per-bar symbol since the path names it.
	// Bars for other symbols are dropped, not errors.
	mock := barsResponse{
		Symbol: "MSFT",
		Bars: []barMessage{
			wireBar("", "2024-01-02T09:30:00Z", "400", "401", "399", "400.5", ""),
			wireBar("AAPL", "2024-01-02T09:31:00Z", "100", "101", "99", "100.5", ""),
			wireBar("MSFT", "2024-01-02T09:32:00Z", "400.5", "402", "400", "401", ""),
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No token configured, no auth header expected.
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(mock)
	}))
	defer server.Close()

	client := testBackfillClient(server.URL, "")

	s, err := client.FetchSeries(context.Background(), BarsRequest{Symbol: "MSFT"})
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 400.5, s.At(0).Close)
	assert.Equal(t, 401.0, s.At(1).Close)
}

func TestFetchSeriesLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("from"))
		assert.Empty(t, r.URL.Query().Get("to"))

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(barsResponse{Symbol: "AAPL"})
	}))
	defer server.Close()

	client := testBackfillClient(server.URL, "")

	s, err := client.FetchSeries(context.Background(), BarsRequest{Symbol: "AAPL", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestFetchSeriesErrors(t *testing.T) {
	t.Run("missing symbol", func(t *testing.T) {
		client := NewBackfillClient("http://localhost:1", "")
		_, err := client.FetchSeries(context.Background(), BarsRequest{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "symbol is required")
	})

	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid access token"}`))
		}))
		defer server.Close()

		client := testBackfillClient(server.URL, "bad-token")
		_, err := client.FetchSeries(context.Background(), BarsRequest{Symbol: "AAPL"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "api error (status 401)")
		assert.Contains(t, err.Error(), "invalid access token")
	})

	t.Run("bad payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		defer server.Close()

		client := testBackfillClient(server.URL, "")
		_, err := client.FetchSeries(context.Background(), BarsRequest{Symbol: "AAPL"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "decode response")
	})

	t.Run("bad bar", func(t *testing.T) {
		mock := barsResponse{Bars: []barMessage{
			wireBar("AAPL", "2024-01-02T09:30:00Z", "oops", "101", "99", "100", ""),
		}}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mock)
		}))
		defer server.Close()

		client := testBackfillClient(server.URL, "")
		_, err := client.FetchSeries(context.Background(), BarsRequest{Symbol: "AAPL"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `bad open "oops"`)
	})

	t.Run("out of order", func(t *testing.T) {
		mock := barsResponse{Bars: []barMessage{
			wireBar("AAPL", "2024-01-02T09:31:00Z", "100", "101", "99", "100.5", ""),
			wireBar("AAPL", "2024-01-02T09:30:00Z", "100", "101", "99", "100.5", ""),
		}}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mock)
		}))
		defer server.Close()

		client := testBackfillClient(server.URL, "")
		_, err := client.FetchSeries(context.Background(), BarsRequest{Symbol: "AAPL"})
		require.Error(t, err)
		assert.ErrorIs(t, err, market.ErrOutOfOrder)
	})
}
