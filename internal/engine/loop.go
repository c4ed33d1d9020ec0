package engine

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"cryptic-tracker/internal/push"
)

// Run waits for the chat connection, then refreshes once immediately and
// every UpdateInterval until ctx is done. A failing cycle never stops the loop.
func (e *Engine) Run(ctx context.Context, ready push.ReadyChecker) {
	if ready == nil {
		e.markReady(nil)
	} else if !e.waitReady(ctx, ready) {
		return
	}

	hlog.CtxInfof(ctx, "refresh loop started, interval=%s", e.cfg.UpdateInterval)
	ticker := time.NewTicker(e.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		e.safeRefresh(ctx)
		select {
		case <-ctx.Done():
			hlog.CtxInfof(ctx, "refresh loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) waitReady(ctx context.Context, ready push.ReadyChecker) bool {
	for {
		id, err := ready.Ready(ctx)
		if err == nil {
			e.markReady(&id)
			hlog.CtxInfof(ctx, "chat connection ready as %s", id.Name)
			return true
		}
		hlog.CtxWarnf(ctx, "chat connection not ready: %v", err)
		if e.sleep(ctx, e.cfg.ReadyRetry) != nil {
			return false
		}
	}
}

func (e *Engine) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			hlog.CtxErrorf(ctx, "refresh cycle panic: %v\n%s", r, debug.Stack())
		}
	}()
	e.Refresh(ctx)
}
