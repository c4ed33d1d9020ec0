package market

import (
	"context"
	"fmt"
	"strings"

	"cryptic-tracker/internal/screener"
)

// PriceSample is one scanner row: the session open and the latest price.
type PriceSample struct {
	Open   float64 `json:"open"`
	Latest float64 `json:"latest"`
}

// ChangePct is the percent move from open to latest. A zero open yields 0.
func (p PriceSample) ChangePct() float64 {
	if p.Open == 0 {
		return 0
	}
	return (p.Latest - p.Open) / p.Open * 100
}

// BatchFetcher queries one scanner partition for a list of tickers.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, screener string, tickers []string) (map[string]PriceSample, error)
}

// Candidate is one symbol search hit.
type Candidate struct {
	Symbol      string `json:"symbol"`
	Exchange    string `json:"exchange"`
	Description string `json:"description,omitempty"`
}

type Searcher interface {
	Search(ctx context.Context, query string, class screener.AssetClass) ([]Candidate, error)
}

// FetchError reports a failed scanner request for one partition.
type FetchError struct {
	Screener string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s batch: %v", e.Screener, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SearchError reports a symbol search the provider refused or answered with
// something other than JSON.
type SearchError struct {
	Status      int
	ContentType string
	Snippet     string
}

func (e *SearchError) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("search: unexpected content type %q: %s", e.ContentType, e.Snippet)
	}
	return fmt.Sprintf("search: http status %d", e.Status)
}

// Ticker formats the provider key EXCHANGE:SYMBOL.
func Ticker(exchange, symbol string) string {
	return strings.ToUpper(strings.TrimSpace(exchange)) + ":" + strings.ToUpper(strings.TrimSpace(symbol))
}
