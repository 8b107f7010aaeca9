// Package testutil provides testing utilities for the memcache storage and
// the page cache annotator.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// OriginResponse defines the behavior for a mock origin endpoint.
type OriginResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable origin server whose handler can be wrapped,
// for example by the page cache middleware.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockOrigin creates a mock origin. wrap, if non-nil, decorates the
// origin handler before it is served.
func NewMockOrigin(wrap func(http.Handler) http.Handler) *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]http.HandlerFunc),
	}

	var handler http.Handler = http.HandlerFunc(mock.serve)
	if wrap != nil {
		handler = wrap(handler)
	}
	mock.server = httptest.NewServer(handler)

	return mock
}

func (m *MockOrigin) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	handler, exists := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if exists {
		handler(w, r)
		return
	}
	m.defaultHandler(w, r)
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp OriginResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOrigin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler serves a cacheable page without an explicit status write,
// so the status line is sent implicitly by the first Write.
func (m *MockOrigin) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	fmt.Fprintf(w, "<html><body>%s</body></html>", r.URL.Path)
}

// NewPageResponse creates a 200 OK page cacheable for maxAge seconds.
func NewPageResponse(body string, maxAge int) OriginResponse {
	return OriginResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Cache-Control": fmt.Sprintf("public, max-age=%d", maxAge),
			"Content-Type":  "text/html; charset=utf-8",
		},
	}
}

// NewUncacheableResponse creates a 200 OK page without a max-age.
func NewUncacheableResponse(body string) OriginResponse {
	return OriginResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Cache-Control": "no-cache, private",
			"Content-Type":  "text/html; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 response that still carries a max-age.
func NewServerErrorResponse() OriginResponse {
	return OriginResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal error",
		Headers: map[string]string{
			"Cache-Control": "public, max-age=60",
			"Content-Type":  "text/plain; charset=utf-8",
		},
	}
}
