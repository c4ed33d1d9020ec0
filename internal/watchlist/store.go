package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"cryptic-tracker/internal/screener"
)

var ErrAlreadyExists = errors.New("asset already exists")

// Backend persists the whole watch-list document.
type Backend interface {
	LoadWatchList(ctx context.Context) (WatchList, error)
	SaveWatchList(ctx context.Context, wl WatchList) error
}

// Store serialises every read-modify-write of the watch-list within the
// process. Loading never fails: unreadable state is logged and treated as an
// empty list.
type Store struct {
	backend Backend
	mu      sync.Mutex
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Load(ctx context.Context) WatchList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) Save(ctx context.Context, wl WatchList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, wl)
}

// Add classifies and appends an entry. A (symbol, exchange) pair already in
// the class list is rejected with ErrAlreadyExists and nothing is written.
func (s *Store) Add(ctx context.Context, class screener.AssetClass, symbol, exchange string) (AssetEntry, error) {
	symbol, exchange = strings.TrimSpace(symbol), strings.TrimSpace(exchange)
	if symbol == "" || exchange == "" {
		return AssetEntry{}, errors.New("symbol and exchange are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wl := s.loadLocked(ctx)
	entries := wl.Entries(class)
	for _, e := range entries {
		if e.matches(symbol, exchange) {
			return e, ErrAlreadyExists
		}
	}
	entry := AssetEntry{
		Symbol:   symbol,
		Exchange: exchange,
		Screener: screener.Classify(class, exchange),
	}
	wl.setEntries(class, append(entries, entry))
	if err := s.saveLocked(ctx, wl); err != nil {
		return entry, err
	}
	return entry, nil
}

// Remove drops every entry matching (symbol, exchange) and reports whether
// anything was removed.
func (s *Store) Remove(ctx context.Context, class screener.AssetClass, symbol, exchange string) (bool, error) {
	symbol, exchange = strings.TrimSpace(symbol), strings.TrimSpace(exchange)

	s.mu.Lock()
	defer s.mu.Unlock()
	wl := s.loadLocked(ctx)
	entries := wl.Entries(class)
	kept := make([]AssetEntry, 0, len(entries))
	for _, e := range entries {
		if !e.matches(symbol, exchange) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	wl.setEntries(class, kept)
	if err := s.saveLocked(ctx, wl); err != nil {
		return true, err
	}
	return true, nil
}

// SetChannel points the display at a new channel. The refresh engine notices
// the change on its next cycle.
func (s *Store) SetChannel(ctx context.Context, channel ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl := s.loadLocked(ctx)
	wl.EmbedChannel = channel
	return s.saveLocked(ctx, wl)
}

func (s *Store) SetMessageID(ctx context.Context, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl := s.loadLocked(ctx)
	if wl.MessageID == id {
		return nil
	}
	wl.MessageID = id
	return s.saveLocked(ctx, wl)
}

func (s *Store) loadLocked(ctx context.Context) WatchList {
	wl, err := s.backend.LoadWatchList(ctx)
	if err != nil {
		hlog.CtxErrorf(ctx, "load watchlist error, using empty list: %v", err)
		return WatchList{}.normalized()
	}
	return wl.normalized()
}

func (s *Store) saveLocked(ctx context.Context, wl WatchList) error {
	if err := s.backend.SaveWatchList(ctx, wl.normalized()); err != nil {
		hlog.CtxErrorf(ctx, "save watchlist error: %v", err)
		return fmt.Errorf("save watchlist: %w", err)
	}
	return nil
}
