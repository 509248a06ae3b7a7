// Package client is the Go consumer of the chat API, including the two
// poll loops of the synchronization contract: a directory poll for the
// conversation list and a thread poll for the open conversation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/pkg/errs"
)

// DefaultRequestTimeout bounds every request the pollers make.
const DefaultRequestTimeout = 30 * time.Second

// Client calls the chat API on behalf of one authenticated session.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the API at baseURL using the given bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conversations fetches the caller's conversation directory.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var resp model.ListConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Groups fetches the groups the caller belongs to.
func (c *Client) Groups(ctx context.Context) ([]model.Group, error) {
	var resp model.ListGroupsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/groups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// Messages fetches a thread after the given sequence. The server treats
// this fetch as reading the thread.
func (c *Client) Messages(ctx context.Context, key model.Key, since uint64) (*model.ListMessagesResponse, error) {
	path := "/api/v1/conversations/" + url.PathEscape(string(key)) + "/messages"
	if since > 0 {
		path += fmt.Sprintf("?since=%d", since)
	}
	var resp model.ListMessagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Send posts one message. It is never retried here: without a client
// message id a retry can duplicate, so the decision stays with the caller.
func (c *Client) Send(ctx context.Context, req *model.SendMessageRequest) (*model.Message, error) {
	var resp model.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", req, &resp); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// CreateGroup creates a custom group.
func (c *Client) CreateGroup(ctx context.Context, req *model.CreateGroupRequest) (*model.Group, error) {
	var g model.Group
	if err := c.do(ctx, http.MethodPost, "/api/v1/groups", req, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ClearConversation clears all messages of a conversation.
func (c *Client) ClearConversation(ctx context.Context, key model.Key) error {
	path := "/api/v1/conversations/" + url.PathEscape(string(key)) + "/messages"
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// RegisterNotificationToken forwards a device token.
func (c *Client) RegisterNotificationToken(ctx context.Context, req *model.NotificationTokenRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/notification-token", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Networkf(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errs.Networkf(err, "failed to decode response")
		}
	}
	return nil
}

func statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	msg := payload.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return errs.Validationf("%s", msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.Authorizationf("%s", msg)
	case http.StatusNotFound:
		return errs.NotFoundf("%s", msg)
	case http.StatusConflict:
		return errs.Conflictf("%s", msg)
	default:
		return errs.Networkf(fmt.Errorf("status %d", resp.StatusCode), "%s", msg)
	}
}
