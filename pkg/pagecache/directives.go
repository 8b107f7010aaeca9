package pagecache

import (
	"iter"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// CacheControl is a parsed Cache-Control header. Directive order is kept
// so that rewriting a header changes only the directives touched.
type CacheControl struct {
	directives []directive
}

type directive struct {
	name  string
	value string
}

// ParseCacheControl parses every Cache-Control field of header.
// Directive names are lower-cased; values are kept verbatim.
func ParseCacheControl(header http.Header) CacheControl {
	var cc CacheControl
	for _, field := range header.Values("Cache-Control") {
		for name, value := range directivesSeq2(field) {
			cc.directives = append(cc.directives, directive{name: strings.ToLower(name), value: value})
		}
	}
	return cc
}

// Get returns the value of the named directive and whether it is present.
// Directives without an argument have an empty value.
func (c CacheControl) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, d := range c.directives {
		if d.name == name {
			return d.value, true
		}
	}
	return "", false
}

// Has reports whether the named directive is present.
func (c CacheControl) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// MaxAge parses the "max-age" directive.
func (c CacheControl) MaxAge() (dur time.Duration, valid bool) {
	v, ok := c.Get("max-age")
	if !ok {
		return
	}
	return deltaSeconds(v)
}

// Set replaces the value of the named directive in place, or appends it
// when absent.
func (c *CacheControl) Set(name, value string) {
	name = strings.ToLower(name)
	for i := range c.directives {
		if c.directives[i].name == name {
			c.directives[i].value = value
			return
		}
	}
	c.directives = append(c.directives, directive{name: name, value: value})
}

// String formats the directives as a single Cache-Control field value.
func (c CacheControl) String() string {
	parts := make([]string, 0, len(c.directives))
	for _, d := range c.directives {
		if d.value == "" {
			parts = append(parts, d.name)
			continue
		}
		parts = append(parts, d.name+"="+d.value)
	}
	return strings.Join(parts, ", ")
}

// Apply writes c to header as a single Cache-Control field.
func (c CacheControl) Apply(header http.Header) {
	if len(c.directives) == 0 {
		header.Del("Cache-Control")
		return
	}
	header.Set("Cache-Control", c.String())
}

// deltaSeconds parses a delta-seconds value as defined in RFC 9111, §1.2.2.
func deltaSeconds(v string) (dur time.Duration, valid bool) {
	v = strings.Trim(v, `"`)
	if len(v) == 0 || v[0] == '-' {
		return
	}
	seconds, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	return time.Duration(seconds) * time.Second, true
}

// trimmedCSVSeq yields each comma-separated part of s, trimmed of
// whitespace. It does not split inside quoted strings.
func trimmedCSVSeq(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		var part strings.Builder
		inQuotes := false
		escape := false
		for i := range len(s) {
			c := s[i]
			switch {
			case escape:
				part.WriteByte(c)
				escape = false
			case c == '\\':
				part.WriteByte(c)
				escape = true
			case c == '"':
				part.WriteByte(c)
				inQuotes = !inQuotes
			case c == ',' && !inQuotes:
				if p := textproto.TrimString(part.String()); len(p) > 0 {
					if !yield(p) {
						return
					}
				}
				part.Reset()
			default:
				part.WriteByte(c)
			}
		}
		if p := textproto.TrimString(part.String()); len(p) > 0 {
			_ = yield(p)
		}
	}
}

// directivesSeq2 yields the name and argument of each directive in s.
// Names are never empty; a directive without an argument yields "".
func directivesSeq2(s string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for part := range trimmedCSVSeq(s) {
			name, value, found := strings.Cut(part, "=")
			name = textproto.TrimString(name)
			if found {
				value = textproto.TrimString(value)
			}
			if len(name) == 0 {
				continue
			}
			if !yield(name, value) {
				return
			}
		}
	}
}
