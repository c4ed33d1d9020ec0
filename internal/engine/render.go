package engine

import (
	"fmt"
	"strings"
	"time"

	"cryptic-tracker/internal/market"
	"cryptic-tracker/internal/push"
	"cryptic-tracker/internal/watchlist"
)

// Discord rejects embed field values longer than this.
const maxFieldLen = 1024

// Line is the render model for one entry.
type Line struct {
	Symbol    string
	Price     float64
	ChangePct float64
	HasData   bool
}

type Summary struct {
	At      time.Time
	Stocks  []Line
	Cryptos []Line
}

func buildLines(entries []watchlist.AssetEntry, prices map[string]market.PriceSample) []Line {
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		l := Line{Symbol: strings.ToUpper(e.Symbol)}
		if sample, ok := prices[market.Ticker(e.Exchange, e.Symbol)]; ok {
			l.HasData = true
			l.Price = sample.Latest
			l.ChangePct = sample.ChangePct()
		}
		lines = append(lines, l)
	}
	return lines
}

func formatLine(l Line, decimals int) string {
	if !l.HasData {
		return fmt.Sprintf("`%s` ❌ No data", l.Symbol)
	}
	arrow := "🔼"
	if l.ChangePct < 0 {
		arrow = "🔻"
	}
	return fmt.Sprintf("`%s` %s **$%.*f** (%+.2f%%)", l.Symbol, arrow, decimals, l.Price, l.ChangePct)
}

// fieldValue joins lines up to maxFieldLen. Lines that do not fit are replaced
// by a final "… +N more" line; room for that marker is kept while writing.
func fieldValue(lines []Line, decimals int) string {
	if len(lines) == 0 {
		return "—"
	}
	var b strings.Builder
	for i, l := range lines {
		text := formatLine(l, decimals)
		if i > 0 {
			text = "\n" + text
		}
		need := b.Len() + len(text)
		if rest := len(lines) - i - 1; rest > 0 {
			need += len(moreMarker(rest))
		}
		if need > maxFieldLen {
			marker := moreMarker(len(lines) - i)
			if b.Len() == 0 {
				marker = strings.TrimPrefix(marker, "\n")
			}
			b.WriteString(marker)
			break
		}
		b.WriteString(text)
	}
	return b.String()
}

func moreMarker(n int) string {
	return fmt.Sprintf("\n… +%d more", n)
}

func (e *Engine) render(s Summary) push.Embed {
	embed := push.Embed{
		Title:       e.cfg.Title,
		Description: fmt.Sprintf("↻ Updated every %ds", int(e.cfg.UpdateInterval/time.Second)),
		Color:       e.cfg.Color,
		Timestamp:   s.At.UTC().Format(time.RFC3339),
		Fields: []push.EmbedField{
			{Name: "📈 Stocks", Value: fieldValue(s.Stocks, 2)},
			{Name: "🔗 Cryptocurrencies", Value: fieldValue(s.Cryptos, 4)},
		},
		Footer: &push.EmbedFooter{Text: e.cfg.Footer},
	}
	if e.author != nil {
		embed.Author = &push.EmbedAuthor{Name: e.author.Name, IconURL: e.author.IconURL}
	}
	return embed
}
