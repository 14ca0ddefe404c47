package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const maskValue = "***"

var sensitiveKeys = map[string]bool{
	"token":        true,
	"access_token": true,
	"password":     true,
	"api_key":      true,
	"api_secret":   true,
}

// CredentialCheck is the result of a diagnostic login. The response
// excerpt has all credential-like fields masked so it is safe to show in
// an admin screen.
type CredentialCheck struct {
	OK              bool   `json:"ok"`
	StatusCode      int    `json:"status_code,omitempty"`
	URL             string `json:"url"`
	Message         string `json:"message"`
	ResponseExcerpt string `json:"response_excerpt,omitempty"`
}

// TestCredentials performs a login-shaped call without sending an SMS.
// Non-empty arguments override the configured credentials.
func (c *Client) TestCredentials(ctx context.Context, baseURL, username, password string) CredentialCheck {
	if baseURL == "" {
		baseURL = c.cfg.BaseURL
	}
	if username == "" {
		username = c.cfg.Username
	}
	if password == "" {
		password = c.cfg.Password
	}

	var missing []string
	if strings.TrimSpace(baseURL) == "" {
		missing = append(missing, "base URL")
	}
	if strings.TrimSpace(username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(password) == "" {
		missing = append(missing, "password")
	}

	url := ""
	if baseURL != "" {
		url = buildURL(baseURL, loginEndpoint)
	}

	if len(missing) > 0 {
		return CredentialCheck{
			OK:      false,
			URL:     url,
			Message: "Missing required fields: " + strings.Join(missing, ", "),
		}
	}

	probe := &Client{cfg: Config{BaseURL: baseURL}, client: c.client}
	status, body, err := probe.login(ctx, username, password)
	if err != nil {
		return CredentialCheck{
			OK:      false,
			URL:     url,
			Message: fmt.Sprintf("Could not reach the auth endpoint: %v", err),
		}
	}

	excerpt := truncate(string(body), 800)
	var parsed any
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil {
		if masked, mErr := json.MarshalIndent(maskSensitive(parsed), "", "  "); mErr == nil {
			excerpt = truncate(string(masked), 1200)
		}
	}

	token := extractLoginToken(body)
	if (status == 200 || status == 201) && token != "" {
		return CredentialCheck{
			OK:              true,
			StatusCode:      status,
			URL:             url,
			Message:         "Credentials are valid. Token received from the gateway.",
			ResponseExcerpt: excerpt,
		}
	}

	return CredentialCheck{
		OK:              false,
		StatusCode:      status,
		URL:             url,
		Message:         classifyAuthFailure(status, token),
		ResponseExcerpt: excerpt,
	}
}

func classifyAuthFailure(status int, token string) string {
	switch {
	case status == 405:
		return "Method Not Allowed. Check the API base URL. It should be the API root only, without /auth/token."
	case status == 404:
		return "Auth endpoint not found. Verify the API base URL and version path."
	case status == 401 || status == 403:
		return "Authentication failed. Verify the API username and password."
	case (status == 200 || status == 201) && token == "":
		return "Auth endpoint responded but no token was returned. Check credentials and response format."
	default:
		return fmt.Sprintf("Auth failed with HTTP %d.", status)
	}
}

func extractLoginToken(body []byte) string {
	var parsed struct {
		Token       string    `json:"token"`
		AccessToken string    `json:"access_token"`
		Data        dataBlock `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, candidate := range []string{parsed.Data.Token, parsed.Data.AccessToken, parsed.Token, parsed.AccessToken} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// dataBlock tolerates "data" being a non-object value.
type dataBlock struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

func (d *dataBlock) UnmarshalJSON(raw []byte) error {
	type alias dataBlock
	var a alias
	if err := json.Unmarshal(raw, &a); err == nil {
		*d = dataBlock(a)
	}
	return nil
}

func maskSensitive(value any) any {
	switch v := value.(type) {
	case map[string]any:
		masked := make(map[string]any, len(v))
		for key, item := range v {
			if sensitiveKeys[strings.ToLower(key)] {
				masked[key] = maskValue
			} else {
				masked[key] = maskSensitive(item)
			}
		}
		return masked
	case []any:
		masked := make([]any, len(v))
		for i, item := range v {
			masked[i] = maskSensitive(item)
		}
		return masked
	default:
		return value
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
