package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"

	"cryptic-tracker/internal/market"
	"cryptic-tracker/internal/push"
	"cryptic-tracker/internal/screener"
	"cryptic-tracker/internal/store"
	"cryptic-tracker/internal/watchlist"
)

type Config struct {
	UpdateInterval time.Duration
	RequestDelay   time.Duration
	ReadyRetry     time.Duration
	Title          string
	Footer         string
	Color          int
}

var (
	// ErrNotReady is returned by TryRefresh before Run has confirmed the chat
	// connection.
	ErrNotReady = errors.New("chat connection not ready")
	ErrBusy     = errors.New("refresh already in progress")
)

// PublishLog records every create/edit attempt. Optional.
type PublishLog interface {
	InsertPublish(ctx context.Context, p store.PublishRecord) error
}

// Engine owns the live summary message: it refreshes prices for the
// watch-list and keeps exactly one message per configured channel up to date.
type Engine struct {
	cfg     Config
	list    *watchlist.Store
	fetcher market.BatchFetcher
	surface push.Surface
	pubLog  PublishLog

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	ready       bool
	held        *push.Message
	lastChannel string
	author      *push.Identity
}

func New(cfg Config, list *watchlist.Store, fetcher market.BatchFetcher, surface push.Surface, pubLog PublishLog) *Engine {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 60 * time.Second
	}
	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = 0
	}
	if cfg.ReadyRetry <= 0 {
		cfg.ReadyRetry = 5 * time.Second
	}
	if cfg.Title == "" {
		cfg.Title = "📊 Cryptic Tracker"
	}
	if cfg.Footer == "" {
		cfg.Footer = "Powered by TradingView"
	}
	if cfg.Color == 0 {
		cfg.Color = 0x1abc9c
	}
	return &Engine{
		cfg:     cfg,
		list:    list,
		fetcher: fetcher,
		surface: surface,
		pubLog:  pubLog,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Refresh runs one cycle. Concurrent callers wait for the cycle in flight.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refresh(ctx)
}

// TryRefresh runs one cycle now. It fails with ErrBusy while another cycle is
// running and with ErrNotReady until the scheduler has seen the chat
// connection ready.
func (e *Engine) TryRefresh(ctx context.Context) error {
	if !e.mu.TryLock() {
		return ErrBusy
	}
	defer e.mu.Unlock()
	if !e.ready {
		return ErrNotReady
	}
	e.refresh(ctx)
	return nil
}

// markReady opens manual refreshes. A non-nil id becomes the embed author.
func (e *Engine) markReady(id *push.Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = true
	if id != nil {
		e.author = id
	}
}

func (e *Engine) refresh(ctx context.Context) {
	cycleID := uuid.NewString()[:8]

	wl := e.list.Load(ctx)
	channel := wl.EmbedChannel.String()
	if channel == "" {
		hlog.CtxDebugf(ctx, "[%s] no display channel configured, skip refresh", cycleID)
		return
	}

	e.recoverMessage(ctx, cycleID, channel, wl.MessageID.String())
	e.reconcileChannel(ctx, cycleID, channel)

	stockPrices := e.fetchClass(ctx, cycleID, screener.Stock, wl.Stocks)
	cryptoPrices := e.fetchClass(ctx, cycleID, screener.Crypto, wl.Cryptos)
	if ctx.Err() != nil {
		hlog.CtxInfof(ctx, "[%s] refresh cancelled: %v", cycleID, ctx.Err())
		return
	}

	summary := Summary{
		At:      e.now(),
		Stocks:  buildLines(wl.Stocks, stockPrices),
		Cryptos: buildLines(wl.Cryptos, cryptoPrices),
	}
	e.publish(ctx, cycleID, channel, e.render(summary))
}

// recoverMessage adopts the persisted message after a restart. A message that
// can no longer be fetched is forgotten and a new one is posted later.
func (e *Engine) recoverMessage(ctx context.Context, cycleID, channel, messageID string) {
	if e.held != nil || messageID == "" {
		return
	}
	msg, err := e.surface.ResolveMessage(ctx, channel, messageID)
	if err != nil {
		hlog.CtxDebugf(ctx, "[%s] stored message %s not found in channel %s: %v", cycleID, messageID, channel, err)
		return
	}
	if msg.ChannelID == "" {
		msg.ChannelID = channel
	}
	e.held = &msg
}

// reconcileChannel drops the held message when the display channel moved
// since the previous cycle. The first cycle after start never deletes.
func (e *Engine) reconcileChannel(ctx context.Context, cycleID, channel string) {
	if e.lastChannel != "" && channel != e.lastChannel {
		hlog.CtxInfof(ctx, "[%s] display channel changed %s -> %s", cycleID, e.lastChannel, channel)
		if e.held != nil {
			if err := e.surface.DeleteMessage(ctx, e.held.ChannelID, e.held.ID); err != nil {
				hlog.CtxWarnf(ctx, "[%s] delete old message %s: %v", cycleID, e.held.ID, err)
			}
			e.held = nil
		}
		_ = e.list.SetMessageID(ctx, "")
	}
	e.lastChannel = channel
}

// fetchClass queries every partition of one asset class in order, pausing
// before each request. A failed partition leaves its tickers without data.
func (e *Engine) fetchClass(ctx context.Context, cycleID string, class screener.AssetClass, entries []watchlist.AssetEntry) map[string]market.PriceSample {
	prices := make(map[string]market.PriceSample)
	for _, g := range groupByScreener(class, entries) {
		if err := e.sleep(ctx, e.cfg.RequestDelay); err != nil {
			return prices
		}
		batch, err := e.fetcher.FetchBatch(ctx, g.screener, g.tickers)
		if err != nil {
			hlog.CtxErrorf(ctx, "[%s] %s batch(%s) error: %v", cycleID, class, g.screener, err)
			continue
		}
		for ticker, sample := range batch {
			prices[ticker] = sample
		}
	}
	return prices
}

func (e *Engine) publish(ctx context.Context, cycleID, channel string, embed push.Embed) {
	rec := store.PublishRecord{CycleID: cycleID, ChannelID: channel, Status: "ok"}

	if e.held == nil {
		rec.Action = "create"
		msg, err := e.surface.CreateMessage(ctx, channel, embed)
		if err != nil {
			hlog.CtxErrorf(ctx, "[%s] create summary message in %s: %v", cycleID, channel, err)
			rec.Status, rec.Error = "error", err.Error()
			e.recordPublish(ctx, rec)
			return
		}
		if msg.ChannelID == "" {
			msg.ChannelID = channel
		}
		e.held = &msg
		rec.MessageID = msg.ID
		_ = e.list.SetMessageID(ctx, watchlist.ID(msg.ID))
		hlog.CtxInfof(ctx, "[%s] posted summary message %s in %s", cycleID, msg.ID, channel)
		e.recordPublish(ctx, rec)
		return
	}

	rec.Action = "edit"
	rec.MessageID = e.held.ID
	if err := e.surface.EditMessage(ctx, channel, e.held.ID, embed); err != nil {
		hlog.CtxErrorf(ctx, "[%s] edit summary message %s: %v", cycleID, e.held.ID, err)
		rec.Status, rec.Error = "error", err.Error()
		if errors.Is(err, push.ErrNotFound) {
			e.held = nil
			_ = e.list.SetMessageID(ctx, "")
		}
	}
	e.recordPublish(ctx, rec)
}

func (e *Engine) recordPublish(ctx context.Context, rec store.PublishRecord) {
	if e.pubLog == nil {
		return
	}
	rec.TS = e.now().Unix()
	if err := e.pubLog.InsertPublish(ctx, rec); err != nil {
		hlog.CtxWarnf(ctx, "[%s] insert publish record error: %v", rec.CycleID, err)
	}
}

type partition struct {
	screener string
	tickers  []string
}

// groupByScreener buckets entries by their stored screener, keeping the order
// in which partitions first appear.
func groupByScreener(class screener.AssetClass, entries []watchlist.AssetEntry) []partition {
	var out []partition
	index := make(map[string]int)
	for _, e := range entries {
		scr := e.Screener
		if scr == "" {
			scr = screener.Default(class)
		}
		i, ok := index[scr]
		if !ok {
			i = len(out)
			index[scr] = i
			out = append(out, partition{screener: scr})
		}
		out[i].tickers = append(out[i].tickers, market.Ticker(e.Exchange, e.Symbol))
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
