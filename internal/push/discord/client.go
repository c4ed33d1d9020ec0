package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cryptic-tracker/internal/push"
)

const (
	defaultAPIBase = "https://discord.com/api/v10"
	cdnBase        = "https://cdn.discordapp.com"
)

// Client talks to the Discord REST API with a bot token.
type Client struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

// APIError is a non-2xx answer from Discord.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("discord status=%d code=%d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("discord status=%d", e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == push.ErrNotFound && e.Status == http.StatusNotFound
}

type messageBody struct {
	Embeds []push.Embed `json:"embeds"`
}

type user struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

func NewClient(apiBase, token string, timeout time.Duration) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) CreateMessage(ctx context.Context, channelID string, embed push.Embed) (push.Message, error) {
	var out push.Message
	err := c.do(ctx, http.MethodPost, messagesPath(channelID, ""), messageBody{Embeds: []push.Embed{embed}}, &out)
	if err != nil {
		return push.Message{}, fmt.Errorf("create message: %w", err)
	}
	if out.ChannelID == "" {
		out.ChannelID = channelID
	}
	return out, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, embed push.Embed) error {
	if err := c.do(ctx, http.MethodPatch, messagesPath(channelID, messageID), messageBody{Embeds: []push.Embed{embed}}, nil); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.do(ctx, http.MethodDelete, messagesPath(channelID, messageID), nil, nil); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (c *Client) ResolveMessage(ctx context.Context, channelID, messageID string) (push.Message, error) {
	var out push.Message
	if err := c.do(ctx, http.MethodGet, messagesPath(channelID, messageID), nil, &out); err != nil {
		return push.Message{}, fmt.Errorf("get message: %w", err)
	}
	if out.ChannelID == "" {
		out.ChannelID = channelID
	}
	return out, nil
}

// Ready checks the token against /users/@me and returns the bot's name and
// avatar for the embed author line.
func (c *Client) Ready(ctx context.Context) (push.Identity, error) {
	if c.token == "" {
		return push.Identity{}, errors.New("discord token is empty")
	}
	var u user
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &u); err != nil {
		return push.Identity{}, fmt.Errorf("get current user: %w", err)
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	icon := cdnBase + "/embed/avatars/0.png"
	if u.Avatar != "" {
		icon = fmt.Sprintf("%s/avatars/%s/%s.png", cdnBase, u.ID, u.Avatar)
	}
	return push.Identity{Name: name, IconURL: icon}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "DiscordBot (cryptic-tracker, 1.0)")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func messagesPath(channelID, messageID string) string {
	p := "/channels/" + url.PathEscape(channelID) + "/messages"
	if messageID != "" {
		p += "/" + url.PathEscape(messageID)
	}
	return p
}
