package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"cryptic-tracker/internal/screener"
)

const (
	defaultSearchURL = "https://symbol-search.tradingview.com/symbol_search/"
	maxCandidates    = 25
	snippetLen       = 200
)

var highlightTags = strings.NewReplacer("<em>", "", "</em>", "")

type SymbolSearch struct {
	baseURL string
	client  *http.Client
}

func NewSymbolSearch(baseURL string, timeout time.Duration) *SymbolSearch {
	if baseURL == "" {
		baseURL = defaultSearchURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SymbolSearch{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Search returns up to 25 unique (symbol, exchange) matches for a free-text
// query in provider order.
func (s *SymbolSearch) Search(ctx context.Context, query string, class screener.AssetClass) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search url: %w", err)
	}
	q := u.Query()
	q.Set("text", query)
	q.Set("exchange", "")
	q.Set("type", string(class))
	q.Set("limit", fmt.Sprintf("%d", maxCandidates))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://www.tradingview.com")
	req.Header.Set("Referer", "https://www.tradingview.com/")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SearchError{Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "application/json") {
		return nil, &SearchError{Status: resp.StatusCode, ContentType: ct, Snippet: snippetOf(data)}
	}
	return parseCandidates(data)
}

// snippetOf cuts a body to snippetLen bytes without splitting a rune.
func snippetOf(data []byte) string {
	if len(data) > snippetLen {
		data = data[:snippetLen]
	}
	return strings.ToValidUTF8(string(data), "")
}

func parseCandidates(data []byte) ([]Candidate, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode search: invalid json body")
	}
	items := gjson.ParseBytes(data)
	if !items.IsArray() {
		items = items.Get("symbols")
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("decode search: no symbol list in response")
	}

	seen := make(map[string]bool)
	out := make([]Candidate, 0, maxCandidates)
	items.ForEach(func(_, item gjson.Result) bool {
		c := Candidate{
			Symbol:      highlightTags.Replace(item.Get("symbol").String()),
			Exchange:    highlightTags.Replace(item.Get("exchange").String()),
			Description: highlightTags.Replace(item.Get("description").String()),
		}
		if c.Symbol == "" || c.Exchange == "" {
			return true
		}
		key := c.Symbol + ":" + c.Exchange
		if seen[key] {
			return true
		}
		seen[key] = true
		out = append(out, c)
		return len(out) < maxCandidates
	})
	return out, nil
}
