package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultScannerURL = "https://scanner.tradingview.com"

// ScannerProvider fetches open/close columns from the TradingView scanner,
// one POST per partition.
type ScannerProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

type scanRequest struct {
	Symbols scanSymbols `json:"symbols"`
	Columns []string    `json:"columns"`
}

type scanSymbols struct {
	Tickers []string `json:"tickers"`
}

func NewScannerProvider(baseURL string, timeout time.Duration) *ScannerProvider {
	if baseURL == "" {
		baseURL = defaultScannerURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ScannerProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "Mozilla/5.0",
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *ScannerProvider) FetchBatch(ctx context.Context, screener string, tickers []string) (map[string]PriceSample, error) {
	if len(tickers) == 0 {
		return nil, &FetchError{Screener: screener, Err: errors.New("tickers is empty")}
	}
	body, err := json.Marshal(scanRequest{
		Symbols: scanSymbols{Tickers: tickers},
		Columns: []string{"open", "close"},
	})
	if err != nil {
		return nil, &FetchError{Screener: screener, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/%s/scan", p.baseURL, screener)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Screener: screener, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{Screener: screener, Err: fmt.Errorf("request scanner: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Screener: screener, Err: fmt.Errorf("read scanner: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Screener: screener, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	out, err := parseScan(data, tickers)
	if err != nil {
		return nil, &FetchError{Screener: screener, Err: err}
	}
	return out, nil
}

func parseScan(data []byte, tickers []string) (map[string]PriceSample, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json body")
	}
	rows := gjson.GetBytes(data, "data")
	if !rows.Exists() {
		return nil, errors.New("missing data field")
	}
	out := make(map[string]PriceSample, len(tickers))
	if rows.Type == gjson.Null {
		return out, nil
	}
	if !rows.IsArray() {
		return nil, fmt.Errorf("data is %s, want array", rows.Type)
	}

	wanted := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		wanted[t] = true
	}
	rows.ForEach(func(_, row gjson.Result) bool {
		ticker := row.Get("s").String()
		if !wanted[ticker] {
			return true
		}
		cols := row.Get("d").Array()
		if len(cols) < 2 || cols[0].Type != gjson.Number || cols[1].Type != gjson.Number {
			return true
		}
		out[ticker] = PriceSample{Open: cols[0].Float(), Latest: cols[1].Float()}
		return true
	})
	return out, nil
}
