package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RESTClient talks to the platform gateway over its REST surface.
//
// The gateway multiplexes all shards; any shard may send to any channel
// through it, which is what makes cross-shard message delivery possible
// without the peer shard's cooperation.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

func NewRESTClient(baseURL, token string, log *slog.Logger) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type sentMessage struct {
	ID string `json:"id"`
}

func (c *RESTClient) SendMessage(ctx context.Context, channelID string, content MessageContent) (string, error) {
	var out sentMessage
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), content, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *RESTClient) EditMessage(ctx context.Context, channelID, messageID string, content MessageContent) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), content, nil)
}

func (c *RESTClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), nil, nil)
}

func (c *RESTClient) FetchMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), nil, &out)
	return out, err
}

func (c *RESTClient) PostTyping(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/typing", channelID), nil, nil)
}

func (c *RESTClient) FetchChannel(ctx context.Context, channelID string) (Channel, error) {
	var out Channel
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channels/%s", channelID), nil, &out)
	return out, err
}

type guildMember struct {
	Roles []string `json:"roles"`
}

// MemberRoles fetches a user's role ids in a guild. Not part of Transport;
// only permission tier resolution needs it.
func (c *RESTClient) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	var out guildMember
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bot "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s: status %d", err, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: decode: %v", ErrUnreachable, method, path, err)
	}
	return nil
}

func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUnreachable
	}
}
