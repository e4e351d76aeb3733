package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alpaquero/alpaquero/market"
)

// BackfillClient fetches historical bars over REST from the provider
// the websocket feed streams. Responses carry the same wire shape as
// the stream, minus the event envelope.
type BackfillClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewBackfillClient builds a client for baseURL. Token may be empty
// for endpoints without auth.
func NewBackfillClient(baseURL, token string) *BackfillClient {
	return &BackfillClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BarsRequest represents parameters for fetching historical bars.
type BarsRequest struct {
	Symbol string    // required
	From   time.Time // zero leaves that end unbounded
	To     time.Time
	Limit  int // max bars, server default when 0
}

// barsResponse is the API response for a bar query.
type barsResponse struct {
	Symbol string       `json:"symbol"`
	Bars   []barMessage `json:"bars"`
}

// FetchSeries downloads bars for the requested symbol and window and
// returns them as a series, oldest first. A disordered response
// aborts with market.ErrOutOfOrder.
func (c *BackfillClient) FetchSeries(ctx context.Context, req BarsRequest) (*market.Series, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	if !req.From.IsZero() {
		params.Set("from", req.From.UTC().Format(time.RFC3339))
	}
	if !req.To.IsZero() {
		params.Set("to", req.To.UTC().Format(time.RFC3339))
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	apiURL := fmt.Sprintf("%s/v1/bars/%s", c.baseURL, url.PathEscape(req.Symbol))
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var br barsResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	series := market.NewSeries(req.Symbol)
	for _, m := range br.Bars {
		if m.Symbol == "" {
			m.Symbol = req.Symbol
		}
		b, err := m.bar()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Symbol, err)
		}
		if b.Symbol != req.Symbol {
			continue
		}
		if err := series.Append(b); err != nil {
			return nil, err
		}
	}
	return series, nil
}
