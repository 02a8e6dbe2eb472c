package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed pulls price rounds from a JSON endpoint. The endpoint is expected
// to answer with `{"roundId": n, "answer": "...", "decimals": n, "updatedAt": unix}`.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPFeed constructs a feed adapter for the provided endpoint. When the
// client is nil http.DefaultClient is used. The API key is optional and only
// added to the request headers when supplied.
func NewHTTPFeed(client HTTPDoer, endpoint, apiKey string) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), apiKey: strings.TrimSpace(apiKey)}
}

// LatestRound implements the Feed interface.
func (f *HTTPFeed) LatestRound() (Round, error) {
	if f == nil || f.endpoint == "" {
		return Round{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Round{}, err
	}
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Round{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Round{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		RoundID   uint64 `json:"roundId"`
		Answer    string `json:"answer"`
		Decimals  uint8  `json:"decimals"`
		UpdatedAt int64  `json:"updatedAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Round{}, fmt.Errorf("http feed: decode: %w", err)
	}
	answer, ok := new(big.Int).SetString(strings.TrimSpace(payload.Answer), 10)
	if !ok {
		return Round{}, fmt.Errorf("http feed: invalid answer %q", payload.Answer)
	}
	return Round{
		RoundID:   payload.RoundID,
		Answer:    answer,
		Decimals:  payload.Decimals,
		UpdatedAt: time.Unix(payload.UpdatedAt, 0),
	}, nil
}
