// Package credential holds the host-keyed authentication table used by
// the registry and downloader clients, generalizing the teacher's
// pkg/helpers.GetTokenFromRequest (which only ever decoded an inbound
// Basic/Bearer header) into the outbound direction: attaching the right
// auth scheme per upstream host.
package credential

import (
	"encoding/base64"
	"strings"
	"sync"

	resty "github.com/go-resty/resty/v2"
)

// Scheme identifies how a credential is presented on the wire.
type Scheme int

const (
	SchemeBasic Scheme = iota
	SchemeBearer
	SchemeGitHubToken
	SchemeGitLabPrivateToken
)

// Auth is one host's stored credential.
type Auth struct {
	Scheme   Scheme
	Username string // Basic only
	Token    string
}

// Apply attaches Auth to a resty request using the header/scheme its
// host expects.
func (a Auth) Apply(req *resty.Request) {
	switch a.Scheme {
	case SchemeBasic:
		req.SetHeader("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(a.Username+":"+a.Token)))
	case SchemeBearer:
		req.SetHeader("Authorization", "Bearer "+a.Token)
	case SchemeGitHubToken:
		req.SetHeader("Authorization", "token "+a.Token)
	case SchemeGitLabPrivateToken:
		req.SetHeader("PRIVATE-TOKEN", a.Token)
	}
}

// Table is a concurrency-safe host -> Auth map, populated from
// composer's auth.json equivalent or environment variables at startup.
type Table struct {
	mu    sync.RWMutex
	byHost map[string]Auth
}

// NewTable returns an empty credential table.
func NewTable() *Table {
	return &Table{byHost: make(map[string]Auth)}
}

// Set registers (or replaces) the credential for host.
func (t *Table) Set(host string, auth Auth) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byHost[strings.ToLower(host)] = auth
}

// For returns the credential registered for host, if any. A nil Table
// (no credentials configured at all) is a valid, always-empty table.
func (t *Table) For(host string) (Auth, bool) {
	if t == nil {
		return Auth{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.byHost[strings.ToLower(host)]
	return a, ok
}

// ParseBasicHeader decodes an inbound "Authorization: Basic ..." header
// value into username/password, the same decode the teacher's
// GetTokenFromRequest performed for its own inbound requests.
func ParseBasicHeader(headerValue string) (username, password string, ok bool) {
	parts := strings.SplitN(headerValue, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", false
	}
	up := strings.SplitN(string(raw), ":", 2)
	if len(up) != 2 {
		return "", "", false
	}
	return up[0], up[1], true
}
