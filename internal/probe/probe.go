// Package probe discovers the server's public egress IP by asking a
// fixed list of lookup services. Used only for gateway allow-listing
// diagnostics.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

const requestTimeout = 8 * time.Second

type Endpoint struct {
	URL  string
	JSON bool
}

var DefaultEndpoints = []Endpoint{
	{URL: "https://api.ipify.org?format=json", JSON: true},
	{URL: "https://ifconfig.me/ip"},
	{URL: "https://checkip.amazonaws.com"},
	{URL: "https://ipinfo.io/ip"},
}

type Result struct {
	OK          bool     `json:"ok"`
	IP          string   `json:"ip,omitempty"`
	ProviderURL string   `json:"provider_url,omitempty"`
	Message     string   `json:"message"`
	Details     []string `json:"details,omitempty"`
}

type Prober struct {
	client    *http.Client
	endpoints []Endpoint
}

func New(endpoints []Endpoint) *Prober {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	return &Prober{
		client:    &http.Client{Timeout: requestTimeout},
		endpoints: endpoints,
	}
}

// OutboundIP tries each endpoint in order and stops at the first
// syntactically valid address.
func (p *Prober) OutboundIP(ctx context.Context) Result {
	var errs []string

	for _, ep := range p.endpoints {
		ip, err := p.lookup(ctx, ep)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ep.URL, err))
			continue
		}
		return Result{
			OK:          true,
			IP:          ip,
			ProviderURL: ep.URL,
			Message:     "Outbound public IP detected from this server.",
		}
	}

	if len(errs) > 4 {
		errs = errs[:4]
	}
	return Result{
		OK:      false,
		Message: "Could not determine the outbound public IP from this server.",
		Details: errs,
	}
}

func (p *Prober) lookup(ctx context.Context, ep Endpoint) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json,text/plain,*/*")
	req.Header.Set("User-Agent", "smsapp-ip-probe/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}

	candidate := string(body)
	if ep.JSON {
		var parsed struct {
			IP    string `json:"ip"`
			Query string `json:"query"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("invalid JSON response")
		}
		candidate = parsed.IP
		if candidate == "" {
			candidate = parsed.Query
		}
	}

	ip, ok := validIP(candidate)
	if !ok {
		return "", fmt.Errorf("no valid IP in response")
	}
	return ip, nil
}

func validIP(raw string) (string, bool) {
	candidate := strings.TrimSpace(raw)
	if i := strings.IndexByte(candidate, '\n'); i >= 0 {
		candidate = strings.TrimSpace(candidate[:i])
	}

	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return "", false
	}
	return addr.String(), true
}
