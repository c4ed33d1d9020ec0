package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"cryptic-tracker/internal/engine"
	"cryptic-tracker/internal/market"
	"cryptic-tracker/internal/screener"
	"cryptic-tracker/internal/store"
	"cryptic-tracker/internal/watchlist"
)

type fakeSearcher struct {
	items []market.Candidate
	err   error
	class screener.AssetClass
}

func (f *fakeSearcher) Search(_ context.Context, _ string, class screener.AssetClass) ([]market.Candidate, error) {
	f.class = class
	return f.items, f.err
}

type fakeRefresher struct {
	err   error
	calls int
}

func (f *fakeRefresher) TryRefresh(context.Context) error {
	f.calls++
	return f.err
}

type fakePublishes struct {
	limit, offset int
}

func (f *fakePublishes) QueryPublishes(_ context.Context, limit int, offset int) ([]store.PublishRecord, error) {
	f.limit, f.offset = limit, offset
	return []store.PublishRecord{{CycleID: "abc", Action: "edit", Status: "ok"}}, nil
}

type testServer struct {
	h         *server.Hertz
	list      *watchlist.Store
	search    *fakeSearcher
	refresher *fakeRefresher
	publishes *fakePublishes
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		h:         server.Default(),
		list:      watchlist.NewStore(watchlist.NewFileBackend(filepath.Join(t.TempDir(), "config.json"))),
		search:    &fakeSearcher{},
		refresher: &fakeRefresher{},
		publishes: &fakePublishes{},
	}
	RegisterRoutes(ts.h, ts.list, ts.search, ts.refresher, ts.publishes)
	return ts
}

func (ts *testServer) do(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reqBody *ut.Body
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = &ut.Body{Body: bytes.NewReader(data), Len: len(data)}
	}
	w := ut.PerformRequest(ts.h.Engine, method, url, reqBody, ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	out := map[string]any{}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body(), err)
	}
	return resp.StatusCode(), out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	status, out := ts.do(t, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || out["ok"] != true {
		t.Errorf("status=%d body=%v", status, out)
	}
}

func TestAddAndRemoveAsset(t *testing.T) {
	ts := newTestServer(t)
	req := AssetRequest{Type: "stock", Symbol: "AAPL", Exchange: "NASDAQ"}

	status, out := ts.do(t, http.MethodPost, "/api/v1/assets", req)
	if status != http.StatusOK {
		t.Fatalf("add status=%d body=%v", status, out)
	}
	entry, _ := out["entry"].(map[string]any)
	if entry["screener"] != "america" {
		t.Errorf("entry = %v", entry)
	}

	status, _ = ts.do(t, http.MethodPost, "/api/v1/assets", AssetRequest{Type: "stock", Symbol: "aapl", Exchange: "nasdaq"})
	if status != http.StatusConflict {
		t.Errorf("duplicate add status = %d, want 409", status)
	}

	status, out = ts.do(t, http.MethodDelete, "/api/v1/assets", req)
	if status != http.StatusOK || out["removed"] != true {
		t.Errorf("remove status=%d body=%v", status, out)
	}
	status, out = ts.do(t, http.MethodDelete, "/api/v1/assets", req)
	if status != http.StatusOK || out["removed"] != false {
		t.Errorf("second remove status=%d body=%v", status, out)
	}
}

func TestAddAssetValidation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		req  AssetRequest
	}{
		{"bad type", AssetRequest{Type: "bond", Symbol: "X", Exchange: "NYSE"}},
		{"no symbol", AssetRequest{Type: "stock", Exchange: "NYSE"}},
		{"no exchange", AssetRequest{Type: "crypto", Symbol: "BTCUSDT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := ts.do(t, http.MethodPost, "/api/v1/assets", tt.req)
			if status != http.StatusBadRequest || out["ok"] != false {
				t.Errorf("status=%d body=%v", status, out)
			}
		})
	}
	if n := len(ts.list.Load(context.Background()).Stocks); n != 0 {
		t.Errorf("stocks after rejected adds = %d", n)
	}
}

func TestSetChannel(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodPut, "/api/v1/display/channel", map[string]any{"channel_id": "123456789012345678"})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got := ts.list.Load(context.Background()).EmbedChannel; got != "123456789012345678" {
		t.Errorf("embed channel = %q", got)
	}

	status, _ = ts.do(t, http.MethodPut, "/api/v1/display/channel", map[string]any{"channel_id": ""})
	if status != http.StatusBadRequest {
		t.Errorf("empty channel status = %d, want 400", status)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.search.items = []market.Candidate{{Symbol: "BTCUSDT", Exchange: "BINANCE"}}

	status, out := ts.do(t, http.MethodGet, "/api/v1/search?query=btc&type=crypto", nil)
	if status != http.StatusOK {
		t.Fatalf("status=%d body=%v", status, out)
	}
	if items, _ := out["items"].([]any); len(items) != 1 {
		t.Errorf("items = %v", out["items"])
	}
	if ts.search.class != screener.Crypto {
		t.Errorf("class = %q", ts.search.class)
	}

	ts.search.err = &market.SearchError{Status: http.StatusForbidden}
	if status, _ := ts.do(t, http.MethodGet, "/api/v1/search?query=btc&type=crypto", nil); status != http.StatusBadGateway {
		t.Errorf("provider failure status = %d, want 502", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/v1/search?type=crypto", nil); status != http.StatusBadRequest {
		t.Errorf("missing query status = %d, want 400", status)
	}
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t)
	if status, _ := ts.do(t, http.MethodPost, "/api/v1/refresh", nil); status != http.StatusOK {
		t.Errorf("idle refresh status = %d", status)
	}
	ts.refresher.err = engine.ErrBusy
	if status, _ := ts.do(t, http.MethodPost, "/api/v1/refresh", nil); status != http.StatusConflict {
		t.Errorf("busy refresh status = %d, want 409", status)
	}
	ts.refresher.err = engine.ErrNotReady
	if status, _ := ts.do(t, http.MethodPost, "/api/v1/refresh", nil); status != http.StatusServiceUnavailable {
		t.Errorf("not-ready refresh status = %d, want 503", status)
	}
}

func TestPublishes(t *testing.T) {
	ts := newTestServer(t)
	status, out := ts.do(t, http.MethodGet, "/api/v1/publishes?limit=5000&offset=10", nil)
	if status != http.StatusOK {
		t.Fatalf("status=%d body=%v", status, out)
	}
	if ts.publishes.limit != 1000 || ts.publishes.offset != 10 {
		t.Errorf("limit/offset = %d/%d", ts.publishes.limit, ts.publishes.offset)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/v1/publishes?offset=-1", nil); status != http.StatusBadRequest {
		t.Errorf("negative offset status = %d", status)
	}
}
