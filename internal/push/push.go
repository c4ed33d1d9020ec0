package push

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a channel or message no longer exists.
var ErrNotFound = errors.New("message not found")

// Embed is a rich summary card. Field names follow the Discord embed object.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// Identity is how the bot account presents itself.
type Identity struct {
	Name    string
	IconURL string
}

// Surface is the chat side of the live summary: one message per channel that
// is created once and edited afterwards.
type Surface interface {
	CreateMessage(ctx context.Context, channelID string, embed Embed) (Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, embed Embed) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	ResolveMessage(ctx context.Context, channelID, messageID string) (Message, error)
}

// ReadyChecker reports whether the chat connection can be used yet.
type ReadyChecker interface {
	Ready(ctx context.Context) (Identity, error)
}
