package middleware

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/zhouzirui/parent-coach/backend/pkg/utils"
)

// OriginPolicy decides which browser origins may call the API.
// Patterns look like "http://localhost:*", "http://127.0.0.1:5173" or "*".
type OriginPolicy struct {
	patterns []originPattern
}

type originPattern struct {
	any     bool
	scheme  string
	host    string
	port    string
	anyPort bool
}

// NewOriginPolicy parses the allowed origin patterns.
func NewOriginPolicy(patterns []string) (*OriginPolicy, error) {
	policy := &OriginPolicy{}
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		p, err := parseOriginPattern(raw)
		if err != nil {
			return nil, err
		}
		policy.patterns = append(policy.patterns, p)
	}
	return policy, nil
}

func parseOriginPattern(raw string) (originPattern, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "*" {
		return originPattern{any: true}, nil
	}

	scheme, hostport, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" || hostport == "" {
		return originPattern{}, fmt.Errorf("invalid origin pattern %q", raw)
	}

	p := originPattern{scheme: strings.ToLower(scheme)}
	if strings.HasSuffix(hostport, ":*") {
		p.anyPort = true
		hostport = strings.TrimSuffix(hostport, ":*")
	}

	u, err := url.Parse(p.scheme + "://" + hostport)
	if err != nil || u.Hostname() == "" || u.Path != "" {
		return originPattern{}, fmt.Errorf("invalid origin pattern %q", raw)
	}
	p.host = strings.ToLower(u.Hostname())
	p.port = u.Port()
	return p, nil
}

func (p originPattern) match(u *url.URL) bool {
	if p.any {
		return true
	}
	if !strings.EqualFold(u.Scheme, p.scheme) || !strings.EqualFold(u.Hostname(), p.host) {
		return false
	}
	return p.anyPort || u.Port() == p.port
}

// Allowed reports whether origin matches one of the patterns.
func (o *OriginPolicy) Allowed(origin string) bool {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
		return false
	}
	for _, p := range o.patterns {
		if p.match(u) {
			return true
		}
	}
	return false
}

// CheckRequest allows requests without an Origin header (curl, CLI tools)
// and browser requests from an allowed origin.
func (o *OriginPolicy) CheckRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || o.Allowed(origin)
}

// Guard 拒绝来自未授权网页的请求，包括浏览器不做预检的简单请求。
func (o *OriginPolicy) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !o.CheckRequest(r) {
			log.Printf("[cors] rejected origin %q for %s %s", r.Header.Get("Origin"), r.Method, r.URL.Path)
			utils.RespondError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}
