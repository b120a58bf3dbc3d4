// Package client talks to the letschat gateway on behalf of a listening
// user: it logs in, then fetches what the delivery loop needs to poll the
// user's queue directly.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/security"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotLoggedIn is returned by calls that need a session before Login.
var ErrNotLoggedIn = errors.New("client is not logged in")

// StatusError is a non-2xx answer from the gateway.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client is safe for concurrent use once logged in.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log,
	}
}

// WithToken reuses an existing session instead of logging in.
func (c *Client) WithToken(token string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login starts a session. The gateway creates the user's queue before it
// answers.
func (c *Client) Login(ctx context.Context, username string) (*model.User, error) {
	var resp struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/account/login", map[string]string{"username": username}, &resp, false); err != nil {
		return nil, errors.Wrap(err, "login")
	}

	c.WithToken(resp.Token)
	c.logger.Info("logged in", zap.String("userID", resp.User.ID), zap.String("username", resp.User.Username))
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/account/logout", nil, nil, true); err != nil {
		return errors.Wrap(err, "logout")
	}
	c.WithToken("")
	return nil
}

func (c *Client) QueueURL(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/sqs", nil, &resp, true); err != nil {
		return "", errors.Wrap(err, "get queue url")
	}
	return resp.URL, nil
}

func (c *Client) Credentials(ctx context.Context) (model.TemporaryCredential, error) {
	var cred model.TemporaryCredential
	if err := c.do(ctx, http.MethodGet, "/sqs/credentials", nil, &cred, true); err != nil {
		return model.TemporaryCredential{}, errors.Wrap(err, "get queue credentials")
	}
	return cred, nil
}

// Heartbeat keeps the user's queue from being reaped.
func (c *Client) Heartbeat(ctx context.Context) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, "/presence", nil, nil, true), "heartbeat")
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.Token()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set(security.SessionHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))

	var resp struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &resp) == nil && resp.Message != "" {
		return resp.Message
	}
	return strings.TrimSpace(string(data))
}
