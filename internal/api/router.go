package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"cryptic-tracker/internal/engine"
	"cryptic-tracker/internal/market"
	"cryptic-tracker/internal/screener"
	"cryptic-tracker/internal/store"
	"cryptic-tracker/internal/watchlist"
)

// Refresher runs a refresh cycle on demand. It returns engine.ErrBusy or
// engine.ErrNotReady when the cycle cannot start.
type Refresher interface {
	TryRefresh(ctx context.Context) error
}

type PublishQuerier interface {
	QueryPublishes(ctx context.Context, limit int, offset int) ([]store.PublishRecord, error)
}

type AssetRequest struct {
	Type     string `json:"type"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

type ChannelRequest struct {
	ChannelID watchlist.ID `json:"channel_id"`
}

func RegisterRoutes(h *server.Hertz, list *watchlist.Store, search market.Searcher, refresher Refresher, publishes PublishQuerier) {
	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.GET("/api/v1/search", func(ctx context.Context, c *app.RequestContext) {
		if search == nil {
			fail(c, http.StatusInternalServerError, "search not configured")
			return
		}
		query := strings.TrimSpace(string(c.Query("query")))
		if query == "" {
			fail(c, http.StatusBadRequest, "query is required")
			return
		}
		class, ok := screener.ParseAssetClass(string(c.Query("type")))
		if !ok {
			fail(c, http.StatusBadRequest, "type must be stock or crypto")
			return
		}
		items, err := search.Search(ctx, query, class)
		if err != nil {
			hlog.CtxErrorf(ctx, "symbol search %q error: %v", query, err)
			var se *market.SearchError
			if errors.As(err, &se) {
				fail(c, http.StatusBadGateway, se.Error())
				return
			}
			fail(c, http.StatusBadGateway, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.GET("/api/v1/assets", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"watchlist": list.Load(ctx),
		})
	})

	h.POST("/api/v1/assets", func(ctx context.Context, c *app.RequestContext) {
		class, req, ok := bindAsset(c)
		if !ok {
			return
		}
		entry, err := list.Add(ctx, class, req.Symbol, req.Exchange)
		switch {
		case errors.Is(err, watchlist.ErrAlreadyExists):
			c.JSON(http.StatusConflict, map[string]any{
				"ok":    false,
				"error": fmt.Sprintf("%s %s on %s is already tracked", class, entry.Symbol, entry.Exchange),
				"entry": entry,
			})
			return
		case err != nil:
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"entry": entry,
		})
	})

	h.DELETE("/api/v1/assets", func(ctx context.Context, c *app.RequestContext) {
		class, req, ok := bindAsset(c)
		if !ok {
			return
		}
		removed, err := list.Remove(ctx, class, req.Symbol, req.Exchange)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"removed": removed,
		})
	})

	h.PUT("/api/v1/display/channel", func(ctx context.Context, c *app.RequestContext) {
		var req ChannelRequest
		if err := c.BindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.ChannelID == "" {
			fail(c, http.StatusBadRequest, "channel_id is required")
			return
		}
		if err := list.SetChannel(ctx, req.ChannelID); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":         true,
			"channel_id": req.ChannelID,
		})
	})

	h.POST("/api/v1/refresh", func(ctx context.Context, c *app.RequestContext) {
		if refresher == nil {
			fail(c, http.StatusInternalServerError, "refresh engine not configured")
			return
		}
		switch err := refresher.TryRefresh(ctx); {
		case errors.Is(err, engine.ErrNotReady):
			fail(c, http.StatusServiceUnavailable, err.Error())
			return
		case errors.Is(err, engine.ErrBusy):
			fail(c, http.StatusConflict, err.Error())
			return
		case err != nil:
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.GET("/api/v1/publishes", func(ctx context.Context, c *app.RequestContext) {
		if publishes == nil {
			fail(c, http.StatusNotFound, "publish log not configured")
			return
		}
		limit, err := parseLimit(string(c.Query("limit")))
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		offset, err := parseOffset(string(c.Query("offset")))
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		items, err := publishes.QueryPublishes(ctx, limit, offset)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})
}

func bindAsset(c *app.RequestContext) (screener.AssetClass, AssetRequest, bool) {
	var req AssetRequest
	if err := c.BindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json body")
		return "", req, false
	}
	class, ok := screener.ParseAssetClass(req.Type)
	if !ok {
		fail(c, http.StatusBadRequest, "type must be stock or crypto")
		return "", req, false
	}
	req.Symbol, req.Exchange = strings.TrimSpace(req.Symbol), strings.TrimSpace(req.Exchange)
	if req.Symbol == "" || req.Exchange == "" {
		fail(c, http.StatusBadRequest, "symbol and exchange are required")
		return "", req, false
	}
	return class, req, true
}

func fail(c *app.RequestContext, status int, msg string) {
	c.JSON(status, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return v, nil
}
