// Package token manages the gateway bearer token lifecycle: cache a
// token with its expiry, refresh through the login endpoint when it is
// absent or about to expire, and expose a force-refresh for the 401 path.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// expiryMargin is how close to expiry a cached token may get before a
// dispatch stops trusting it.
const expiryMargin = 60 * time.Second

const fallbackTTL = 3600 * time.Second

var ErrNoToken = errors.New("login response did not include a token")

type State struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s State) Usable(now time.Time) bool {
	return s.Token != "" && s.ExpiresAt.After(now.Add(expiryMargin))
}

// Store persists token state. Implementations are expected to tolerate
// concurrent writers: two independent refreshes may both succeed and the
// last write wins.
type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, st State) error
}

// LoginFunc performs the login call and returns the raw HTTP status and
// response body. gateway.Client.Login satisfies it as a method value.
type LoginFunc func(ctx context.Context) (int, []byte, error)

type Manager struct {
	login LoginFunc
	store Store
	now   func() time.Time
}

func NewManager(login LoginFunc, store Store) *Manager {
	return &Manager{
		login: login,
		store: store,
		now:   time.Now,
	}
}

// ValidToken returns a usable token, hitting the network only when the
// cached state is missing, near expiry, or force is set.
func (m *Manager) ValidToken(ctx context.Context, force bool) (string, error) {
	if !force {
		st, ok, err := m.store.Load(ctx)
		if err != nil {
			return "", fmt.Errorf("loading token state: %w", err)
		}
		if ok && st.Usable(m.now()) {
			return st.Token, nil
		}
	}
	return m.Refresh(ctx)
}

// Refresh performs a login and replaces the stored state. On any failure
// the previous state is left untouched and the error is returned.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	status, body, err := m.login(ctx)
	if err != nil {
		return "", fmt.Errorf("token login failed: %w", err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("token login rejected: status %d body=%q", status, truncate(body, 300))
	}

	tok, expiresAt := parseLoginResponse(body, m.now())
	if tok == "" {
		return "", fmt.Errorf("%w: body=%q", ErrNoToken, truncate(body, 300))
	}

	st := State{Token: tok, ExpiresAt: expiresAt}
	if err := m.store.Save(ctx, st); err != nil {
		return "", fmt.Errorf("saving token state: %w", err)
	}
	return tok, nil
}

type loginFields struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	ExpiresIn   int64  `json:"expires_in"`
}

// parseLoginResponse extracts token and expiry using a fixed rule table,
// tried in priority order:
//
//	token:  data.token, data.access_token, token, access_token
//	expiry: data.expires_at, expires_at (absolute unix seconds),
//	        data.expires_in, expires_in (relative seconds),
//	        3600s fallback
func parseLoginResponse(body []byte, now time.Time) (string, time.Time) {
	var top loginFields
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(body, &top)
	_ = json.Unmarshal(body, &envelope)

	var data loginFields
	if len(envelope.Data) > 0 {
		// data may be a non-object value in some gateway responses.
		_ = json.Unmarshal(envelope.Data, &data)
	}

	tok := firstNonEmpty(data.Token, data.AccessToken, top.Token, top.AccessToken)

	switch {
	case data.ExpiresAt > 0:
		return tok, time.Unix(data.ExpiresAt, 0)
	case top.ExpiresAt > 0:
		return tok, time.Unix(top.ExpiresAt, 0)
	case data.ExpiresIn > 0:
		return tok, now.Add(time.Duration(data.ExpiresIn) * time.Second)
	case top.ExpiresIn > 0:
		return tok, now.Add(time.Duration(top.ExpiresIn) * time.Second)
	default:
		return tok, now.Add(fallbackTTL)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max])
}
