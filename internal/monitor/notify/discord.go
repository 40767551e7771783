package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Message is rendered alert content ready for delivery.
type Message struct {
	Title       string
	Description string
	Color       int
}

// Channel delivers rendered messages.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []discordEmbed `json:"embeds"`
}

// DiscordChannel sends alert embeds to a Discord-compatible webhook.
type DiscordChannel struct {
	url       string
	username  string
	avatarURL string
	client    *http.Client
}

// DiscordOption configures the channel.
type DiscordOption func(*DiscordChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) DiscordOption {
	return func(ch *DiscordChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithIdentity sets the webhook display username and avatar.
func WithIdentity(username, avatarURL string) DiscordOption {
	return func(ch *DiscordChannel) {
		ch.username = username
		ch.avatarURL = avatarURL
	}
}

// NewDiscordChannel constructs a webhook channel.
func NewDiscordChannel(url string, opts ...DiscordOption) (*DiscordChannel, error) {
	if url == "" {
		return nil, errors.New("discord channel: empty url")
	}
	channel := &DiscordChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send posts the message as a single embed.
func (d *DiscordChannel) Send(ctx context.Context, msg Message) error {
	if d == nil || d.url == "" {
		return errors.New("discord channel: empty url")
	}
	payload := discordPayload{
		Username:  d.username,
		AvatarURL: d.avatarURL,
		Embeds: []discordEmbed{{
			Title:       msg.Title,
			Description: msg.Description,
			Color:       msg.Color,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
