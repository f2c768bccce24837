package client

import (
	"bufio"
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

	"github.com/cuemby/herald/pkg/api"
	"github.com/cuemby/herald/pkg/events"
	"github.com/cuemby/herald/pkg/metrics"
	"github.com/cuemby/herald/pkg/types"
)

// DefaultTimeout bounds every non-streaming request
const DefaultTimeout = 10 * time.Second

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client wraps the herald HTTP API for easy CLI usage
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client for the API at addr, either host:port or a
// full http(s) URL
func NewClient(addr string) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid API address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid API address %q: missing host", addr)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// ListBots lists all bots
func (c *Client) ListBots() ([]types.BotInfo, error) {
	var bots []types.BotInfo
	err := c.do(http.MethodGet, "/api/bots", nil, &bots)
	return bots, err
}

// CreateBot creates a bot and returns its ID. The bot starts in the
// background.
func (c *Client) CreateBot() (string, error) {
	var resp api.CreateBotResponse
	if err := c.do(http.MethodPost, "/api/bots/create", nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// GetBot gets a bot's status view
func (c *Client) GetBot(id string) (*types.BotInfo, error) {
	var info types.BotInfo
	if err := c.do(http.MethodGet, "/api/bots/"+url.PathEscape(id), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UpdateBot retargets a bot to another server
func (c *Client) UpdateBot(id, serverID string) error {
	return c.do(http.MethodPost, "/api/bots/"+url.PathEscape(id), api.BotUpdateRequest{ServerID: serverID}, nil)
}

// StartBot queues a start
func (c *Client) StartBot(id string) error {
	return c.do(http.MethodPost, "/api/bots/"+url.PathEscape(id)+"/start", nil, nil)
}

// StopBot queues a stop
func (c *Client) StopBot(id string) error {
	return c.do(http.MethodPost, "/api/bots/"+url.PathEscape(id)+"/stop", nil, nil)
}

// RestartBot queues a restart
func (c *Client) RestartBot(id string) error {
	return c.do(http.MethodPost, "/api/bots/"+url.PathEscape(id)+"/restart", nil, nil)
}

// DeleteBot stops and deletes a bot
func (c *Client) DeleteBot(id string) error {
	return c.do(http.MethodDelete, "/api/bots/"+url.PathEscape(id), nil, nil)
}

// BotLogs returns a bot's diagnostic log
func (c *Client) BotLogs(id string) (string, error) {
	var buf bytes.Buffer
	if err := c.do(http.MethodGet, "/api/bots/"+url.PathEscape(id)+"/logs", nil, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BotSession returns the bot's current session document
func (c *Client) BotSession(id string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := c.do(http.MethodGet, "/api/bots/"+url.PathEscape(id)+"/session", nil, &doc)
	return doc, err
}

// Friends lists an online bot's friends
func (c *Client) Friends(id string) ([]types.Friend, error) {
	var friends []types.Friend
	err := c.do(http.MethodGet, "/api/bots/"+url.PathEscape(id)+"/friends", nil, &friends)
	return friends, err
}

// Unfollow removes a friend from an online bot
func (c *Client) Unfollow(id, xuid string) error {
	return c.do(http.MethodDelete, "/api/bots/"+url.PathEscape(id)+"/friends/"+url.PathEscape(xuid), nil, nil)
}

// ListServers lists all servers
func (c *Client) ListServers() ([]*types.Server, error) {
	var servers []*types.Server
	err := c.do(http.MethodGet, "/api/servers", nil, &servers)
	return servers, err
}

// CreateServer creates a server
func (c *Client) CreateServer(req api.ServerRequest) (*types.Server, error) {
	var server types.Server
	if err := c.do(http.MethodPost, "/api/servers", req, &server); err != nil {
		return nil, err
	}
	return &server, nil
}

// GetServer gets a server by ID
func (c *Client) GetServer(id string) (*types.Server, error) {
	var server types.Server
	if err := c.do(http.MethodGet, "/api/servers/"+url.PathEscape(id), nil, &server); err != nil {
		return nil, err
	}
	return &server, nil
}

// UpdateServer replaces a server's settings
func (c *Client) UpdateServer(id string, req api.ServerRequest) (*types.Server, error) {
	var server types.Server
	if err := c.do(http.MethodPost, "/api/servers/"+url.PathEscape(id), req, &server); err != nil {
		return nil, err
	}
	return &server, nil
}

// DeleteServer deletes a server no bot targets
func (c *Client) DeleteServer(id string) error {
	return c.do(http.MethodDelete, "/api/servers/"+url.PathEscape(id), nil, nil)
}

// Health returns the server's component health. An unhealthy server still
// returns its status.
func (c *Client) Health() (*metrics.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, decodeError(resp)
	}

	var health metrics.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &health, nil
}

// WatchEvents streams lifecycle events to fn until ctx is cancelled or the
// server closes the stream. An empty botID receives every bot's events.
func (c *Client) WatchEvents(ctx context.Context, botID string, fn func(*events.Event)) error {
	path := "/api/events"
	if botID != "" {
		path += "?bot=" + url.QueryEscape(botID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var event events.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return fmt.Errorf("invalid event: %w", err)
		}
		fn(&event)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.baseURL.String(), "/") + path
}

// do sends body as JSON and decodes the response into out. A *bytes.Buffer
// out receives the raw body.
func (c *Client) do(method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	switch v := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *bytes.Buffer:
		_, err := io.Copy(v, resp.Body)
		return err
	default:
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var body api.ErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
