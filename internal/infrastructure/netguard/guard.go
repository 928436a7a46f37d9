// Package netguard enforces the sandbox network allowlist. In sandbox
// mode every outbound HTTP call from a connector goes through the guard;
// calls to hosts outside the allowlist are answered locally with a 403
// and never dialed. This is the last line of defense against test
// traffic reaching a real insurer network.
package netguard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BlockedHeader marks synthetic responses produced by the guard.
const BlockedHeader = "x-sandbox-blocked"

// hosts that always pass in sandbox mode.
var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// Guard is an http.RoundTripper that short-circuits disallowed hosts.
type Guard struct {
	next            http.RoundTripper
	sandbox         bool
	allowedPrefixes []string
}

// New wraps next with the allowlist. Extra prefixes come from
// configuration; hosts matching any of them pass in sandbox mode.
func New(next http.RoundTripper, sandbox bool, allowedPrefixes []string) *Guard {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Guard{
		next:            next,
		sandbox:         sandbox,
		allowedPrefixes: append([]string(nil), allowedPrefixes...),
	}
}

// NewClient returns an HTTP client whose transport enforces the
// allowlist. Connectors receive their client from here, never build
// their own.
func NewClient(sandbox bool, allowedPrefixes []string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: New(nil, sandbox, allowedPrefixes),
	}
}

// Allowed reports whether the host may be dialed in sandbox mode.
func (g *Guard) Allowed(host string) bool {
	host = strings.ToLower(host)
	if localHosts[host] {
		return true
	}
	if strings.HasPrefix(host, "test.") {
		return true
	}
	for _, p := range g.allowedPrefixes {
		if p != "" && strings.HasPrefix(host, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// RoundTrip passes allowed requests to the underlying transport and
// answers everything else with the synthetic blocked response.
func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	if !g.sandbox {
		return g.next.RoundTrip(req)
	}

	host := req.URL.Hostname()
	if g.Allowed(host) {
		return g.next.RoundTrip(req)
	}

	return g.blockedResponse(req, host)
}

// blockedBody is the exact wire shape of a blocked call. Callers and
// their tests match on it, so the field set is frozen.
type blockedBody struct {
	Error           string   `json:"error"`
	Message         string   `json:"message"`
	Domain          string   `json:"domain"`
	AllowedPrefixes []string `json:"allowedPrefixes"`
}

func (g *Guard) blockedResponse(req *http.Request, host string) (*http.Response, error) {
	prefixes := append([]string{"localhost", "127.0.0.1", "::1", "test."}, g.allowedPrefixes...)

	body, err := json.Marshal(blockedBody{
		Error:           "SANDBOX_BLOCKED",
		Message:         fmt.Sprintf("outbound call to %s is blocked in sandbox mode", host),
		Domain:          host,
		AllowedPrefixes: prefixes,
	})
	if err != nil {
		return nil, fmt.Errorf("encode blocked response: %w", err)
	}

	header := make(http.Header)
	header.Set(BlockedHeader, "true")
	header.Set("Content-Type", "application/json")

	return &http.Response{
		Status:        http.StatusText(http.StatusForbidden),
		StatusCode:    http.StatusForbidden,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}
