package watchlist

import (
	"encoding/json"
	"fmt"
	"strings"

	"cryptic-tracker/internal/screener"
)

// ID is a Discord snowflake. Files written by older deployments store ids as
// JSON numbers, so both numbers and strings are accepted when decoding.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return fmt.Errorf("invalid id %s", raw)
		}
	}
	*id = ID(raw)
	return nil
}

func (id ID) String() string {
	return string(id)
}

// AssetEntry is one tracked instrument. Screener is fixed when the entry is
// added.
type AssetEntry struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Screener string `json:"screener"`
}

func (e AssetEntry) matches(symbol, exchange string) bool {
	return strings.EqualFold(e.Symbol, symbol) && strings.EqualFold(e.Exchange, exchange)
}

type WatchList struct {
	EmbedChannel ID           `json:"embed_channel,omitempty"`
	MessageID    ID           `json:"message_id,omitempty"`
	Stocks       []AssetEntry `json:"stocks"`
	Cryptos      []AssetEntry `json:"cryptos"`
}

// Entries returns the list for one asset class.
func (w WatchList) Entries(class screener.AssetClass) []AssetEntry {
	if class == screener.Crypto {
		return w.Cryptos
	}
	return w.Stocks
}

func (w *WatchList) setEntries(class screener.AssetClass, entries []AssetEntry) {
	if class == screener.Crypto {
		w.Cryptos = entries
		return
	}
	w.Stocks = entries
}

func (w WatchList) normalized() WatchList {
	if w.Stocks == nil {
		w.Stocks = []AssetEntry{}
	}
	if w.Cryptos == nil {
		w.Cryptos = []AssetEntry{}
	}
	return w
}
