// Package gateway is the HTTP client for the Mtech messaging API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	loginEndpoint = "/auth/token"
	sendEndpoint  = "/messaging/send"

	loginTimeout = 10 * time.Second
	sendTimeout  = 15 * time.Second
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	SenderID string
}

type Client struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		// The outer timeout is the longest single call we make; shorter
		// per-call deadlines are set with context.
		client: &http.Client{Timeout: sendTimeout},
	}
}

func (c *Client) SenderID() string { return c.cfg.SenderID }

// Payload is the body of one send call. Extra carries provider-specific
// parameters that are merged into the JSON object at the top level.
type Payload struct {
	MessageID        string         `json:"message_id"`
	Message          string         `json:"message"`
	Sender           string         `json:"sender"`
	MessageType      string         `json:"message_type"`
	MSISDNs          []string       `json:"msisdns"`
	DLRURL           string         `json:"dlr_url,omitempty"`
	Encrypted        string         `json:"encrypted,omitempty"`
	EncryptionMethod string         `json:"encryption_method,omitempty"`
	Extra            map[string]any `json:"-"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	base, err := json.Marshal(alias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, reserved := merged[k]; !reserved {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Login posts the stored credentials to the auth endpoint and returns the
// raw status code and body. Token extraction is the caller's concern.
func (c *Client) Login(ctx context.Context) (int, []byte, error) {
	return c.login(ctx, c.cfg.Username, c.cfg.Password)
}

func (c *Client) login(ctx context.Context, username, password string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return 0, nil, err
	}

	return c.post(ctx, buildURL(c.cfg.BaseURL, loginEndpoint), "", body)
}

// Send submits one batch of recipients in a single call. The gateway does
// not report per-recipient results.
func (c *Client) Send(ctx context.Context, token string, p Payload) (int, []byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, nil, err
	}
	return c.post(ctx, buildURL(c.cfg.BaseURL, sendEndpoint), token, body)
}

func (c *Client) post(ctx context.Context, url, token string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading gateway response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func buildURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + endpoint
}
