package push

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// TokenBucket paces calls to perMinute with bursts up to burst. A nil bucket
// never blocks.
type TokenBucket struct {
	mu        sync.Mutex
	tokens    float64
	perSecond float64
	burst     float64
	last      time.Time
	now       func() time.Time
}

// NewTokenBucket returns nil when perMinute <= 0, which disables pacing.
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &TokenBucket{
		tokens:    float64(burst),
		perSecond: float64(perMinute) / 60.0,
		burst:     float64(burst),
		last:      time.Now(),
		now:       time.Now,
	}
}

// Wait takes a token, sleeping until one refills or ctx is done.
func (t *TokenBucket) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	for {
		ok, wait := t.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve refills from the clock, then takes a token if one is available.
// Otherwise it reports how long until the next token.
func (t *TokenBucket) reserve() (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if elapsed := now.Sub(t.last); elapsed > 0 {
		t.tokens = math.Min(t.burst, t.tokens+elapsed.Seconds()*t.perSecond)
		t.last = now
	}
	if t.tokens >= 1 {
		t.tokens--
		return true, 0
	}
	wait := time.Duration((1 - t.tokens) / t.perSecond * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return false, wait
}

// Limited paces every call to the wrapped surface through one bucket, so
// manual refreshes cannot push the bot past the platform's message limits.
type Limited struct {
	Surface
	bucket *TokenBucket
}

func NewLimited(s Surface, bucket *TokenBucket) *Limited {
	return &Limited{Surface: s, bucket: bucket}
}

func (l *Limited) CreateMessage(ctx context.Context, channelID string, embed Embed) (Message, error) {
	if err := l.bucket.Wait(ctx); err != nil {
		return Message{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.Surface.CreateMessage(ctx, channelID, embed)
}

func (l *Limited) EditMessage(ctx context.Context, channelID, messageID string, embed Embed) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return l.Surface.EditMessage(ctx, channelID, messageID, embed)
}

func (l *Limited) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return l.Surface.DeleteMessage(ctx, channelID, messageID)
}
