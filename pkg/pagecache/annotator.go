// Package pagecache shapes the Cache-Control header of top-level page
// responses so that shared caches (reverse proxies, CDNs) keep a page for
// its full max-age while browsers revalidate on every request.
//
// A response is rewritten when all of the following hold:
//
//   - the request is not a sub-request,
//   - the request policy allows caching,
//   - the response policy does not deny caching,
//   - the page cache max age setting is positive,
//   - the response carries a non-zero max-age directive.
//
// The rewrite copies max-age into s-maxage and sets max-age to 0:
//
//	Cache-Control: public, max-age=300
//	Cache-Control: public, max-age=0, s-maxage=300
package pagecache

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Annotator rewrites Cache-Control headers of cacheable responses.
type Annotator struct {
	maxAge         time.Duration
	requestPolicy  RequestPolicy
	responsePolicy ResponsePolicy
	logger         zerolog.Logger
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithRequestPolicy replaces DefaultRequestPolicy.
func WithRequestPolicy(p RequestPolicy) Option {
	return func(a *Annotator) {
		a.requestPolicy = p
	}
}

// WithResponsePolicy replaces DefaultResponsePolicy.
func WithResponsePolicy(p ResponsePolicy) Option {
	return func(a *Annotator) {
		a.responsePolicy = p
	}
}

// NewAnnotator creates an Annotator for the page cache max age setting.
// A non-positive maxAge disables the rewrite.
func NewAnnotator(maxAge time.Duration, logger zerolog.Logger, opts ...Option) *Annotator {
	a := &Annotator{
		maxAge:         maxAge,
		requestPolicy:  DefaultRequestPolicy(),
		responsePolicy: DefaultResponsePolicy(),
		logger:         logger.With().Str("component", "pagecache").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Annotate rewrites resp.Header in place and reports whether it did.
func (a *Annotator) Annotate(r *http.Request, resp *Response) bool {
	reason := a.skipReason(r, resp)
	if reason != "" {
		Annotations.WithLabelValues(reason).Inc()
		return false
	}

	cc := ParseCacheControl(resp.Header)
	value, _ := cc.Get("max-age")
	cc.Set("s-maxage", value)
	cc.Set("max-age", "0")
	cc.Apply(resp.Header)

	Annotations.WithLabelValues(reasonRewritten).Inc()
	a.logger.Debug().
		Str("path", r.URL.Path).
		Str("cache_control", resp.Header.Get("Cache-Control")).
		Msg("Response marked for shared caches only")
	return true
}

const (
	reasonRewritten      = "rewritten"
	reasonSubrequest     = "subrequest"
	reasonRequestPolicy  = "request_policy"
	reasonResponsePolicy = "response_policy"
	reasonDisabled       = "disabled"
	reasonNoMaxAge       = "no_max_age"
)

func (a *Annotator) skipReason(r *http.Request, resp *Response) string {
	if IsSubrequest(r.Context()) {
		return reasonSubrequest
	}
	if a.requestPolicy.Check(r) != Allow {
		return reasonRequestPolicy
	}
	if a.responsePolicy.Check(resp, r) == Deny {
		return reasonResponsePolicy
	}
	if a.maxAge <= 0 {
		return reasonDisabled
	}
	if maxAge, ok := ParseCacheControl(resp.Header).MaxAge(); !ok || maxAge == 0 {
		return reasonNoMaxAge
	}
	return ""
}
