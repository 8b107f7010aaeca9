package pagecache

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
)

// Decision is the outcome of a cache policy check.
type Decision int

const (
	// Neutral leaves the decision to other policies.
	Neutral Decision = iota
	// Allow permits caching.
	Allow
	// Deny forbids caching. A single Deny overrides any Allow.
	Deny
)

// String returns a human-readable representation of the decision.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "neutral"
	}
}

// Response is the part of an outgoing response visible to policies before
// its headers are sent.
type Response struct {
	StatusCode int
	Header     http.Header
}

// RequestPolicy decides whether a request may be served from a shared cache.
type RequestPolicy interface {
	Check(r *http.Request) Decision
}

// ResponsePolicy decides whether a response may be stored by a shared cache.
type ResponsePolicy interface {
	Check(resp *Response, r *http.Request) Decision
}

// RequestPolicyFunc adapts a function to RequestPolicy.
type RequestPolicyFunc func(r *http.Request) Decision

// Check implements RequestPolicy.
func (f RequestPolicyFunc) Check(r *http.Request) Decision { return f(r) }

// ResponsePolicyFunc adapts a function to ResponsePolicy.
type ResponsePolicyFunc func(resp *Response, r *http.Request) Decision

// Check implements ResponsePolicy.
func (f ResponsePolicyFunc) Check(resp *Response, r *http.Request) Decision { return f(resp, r) }

// RequestChain combines request policies: any Deny wins, otherwise any
// Allow, otherwise Neutral.
type RequestChain []RequestPolicy

// Check implements RequestPolicy.
func (c RequestChain) Check(r *http.Request) Decision {
	result := Neutral
	for _, p := range c {
		switch p.Check(r) {
		case Deny:
			return Deny
		case Allow:
			result = Allow
		}
	}
	return result
}

// ResponseChain combines response policies the same way RequestChain does.
type ResponseChain []ResponsePolicy

// Check implements ResponsePolicy.
func (c ResponseChain) Check(resp *Response, r *http.Request) Decision {
	result := Neutral
	for _, p := range c {
		switch p.Check(resp, r) {
		case Deny:
			return Deny
		case Allow:
			result = Allow
		}
	}
	return result
}

// SafeMethodPolicy denies requests whose method is not GET or HEAD.
type SafeMethodPolicy struct{}

// Check implements RequestPolicy.
func (SafeMethodPolicy) Check(r *http.Request) Decision {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return Deny
	}
	return Neutral
}

// DefaultSessionCookiePrefix matches the cookie names session managers
// commonly issue ("SESS...", "SSESS...").
const DefaultSessionCookiePrefix = "SESS"

// NoSessionPolicy allows requests that carry no session cookie. Requests
// with a session are left Neutral, so they are not cached unless another
// policy allows them.
type NoSessionPolicy struct {
	// CookiePrefix identifies session cookies. Empty means
	// DefaultSessionCookiePrefix.
	CookiePrefix string
}

// Check implements RequestPolicy.
func (p NoSessionPolicy) Check(r *http.Request) Decision {
	prefix := p.CookiePrefix
	if prefix == "" {
		prefix = DefaultSessionCookiePrefix
	}
	for _, c := range r.Cookies() {
		// Sessions over HTTPS use the prefix with an extra leading "S".
		if strings.HasPrefix(c.Name, prefix) || strings.HasPrefix(c.Name, "S"+prefix) {
			return Neutral
		}
	}
	return Allow
}

// NoServerErrorPolicy denies responses with a 5xx status.
type NoServerErrorPolicy struct{}

// Check implements ResponsePolicy.
func (NoServerErrorPolicy) Check(resp *Response, _ *http.Request) Decision {
	if resp.StatusCode >= http.StatusInternalServerError {
		return Deny
	}
	return Neutral
}

// NoStorePolicy denies responses marked private or no-store.
type NoStorePolicy struct{}

// Check implements ResponsePolicy.
func (NoStorePolicy) Check(resp *Response, _ *http.Request) Decision {
	cc := ParseCacheControl(resp.Header)
	if cc.Has("no-store") || cc.Has("private") {
		return Deny
	}
	return Neutral
}

type killSwitchKey struct{}

// KillSwitch denies the response of any request whose handler called
// Trigger. The middleware installs a switch on every request it serves.
type KillSwitch struct{}

// Check implements ResponsePolicy.
func (KillSwitch) Check(_ *Response, r *http.Request) Decision {
	if sw, ok := r.Context().Value(killSwitchKey{}).(*atomic.Bool); ok && sw.Load() {
		return Deny
	}
	return Neutral
}

// Trigger marks the response of the request carrying ctx as not cacheable
// by shared caches. It is a no-op outside the middleware.
func Trigger(ctx context.Context) {
	if sw, ok := ctx.Value(killSwitchKey{}).(*atomic.Bool); ok {
		sw.Store(true)
	}
}

func withKillSwitch(ctx context.Context) context.Context {
	if _, ok := ctx.Value(killSwitchKey{}).(*atomic.Bool); ok {
		return ctx
	}
	return context.WithValue(ctx, killSwitchKey{}, new(atomic.Bool))
}

type subrequestKey struct{}

// WithSubrequest marks ctx as belonging to a sub-request. Responses to
// sub-requests are never annotated; only the top-level response is.
func WithSubrequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, subrequestKey{}, true)
}

// IsSubrequest reports whether ctx was marked by WithSubrequest.
func IsSubrequest(ctx context.Context) bool {
	sub, _ := ctx.Value(subrequestKey{}).(bool)
	return sub
}

// DefaultRequestPolicy returns the request policy used when none is given:
// safe methods without a session are cacheable.
func DefaultRequestPolicy() RequestPolicy {
	return RequestChain{SafeMethodPolicy{}, NoSessionPolicy{}}
}

// DefaultResponsePolicy returns the response policy used when none is given.
func DefaultResponsePolicy() ResponsePolicy {
	return ResponseChain{KillSwitch{}, NoServerErrorPolicy{}, NoStorePolicy{}}
}
