package pagecache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/memcache-storage/internal/testutil"
)

func get(t *testing.T, url string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestMiddleware_Origin(t *testing.T) {
	a := NewAnnotator(10*time.Minute, zerolog.Nop())
	origin := testutil.NewMockOrigin(a.Middleware)
	defer origin.Close()

	origin.SetResponse("/page", testutil.NewPageResponse("page", 300))
	origin.SetResponse("/private", testutil.NewUncacheableResponse("private"))
	origin.SetResponse("/error", testutil.NewServerErrorResponse())

	tests := []struct {
		name    string
		path    string
		cookies []*http.Cookie
		want    string
	}{
		{"explicit status", "/page", nil, "public, max-age=0, s-maxage=300"},
		{"implicit status", "/node/1", nil, "public, max-age=0, s-maxage=300"},
		{"uncacheable", "/private", nil, "no-cache, private"},
		{"server error", "/error", nil, "public, max-age=60"},
		{"session", "/page", []*http.Cookie{{Name: "SESSabc", Value: "x"}}, "public, max-age=300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, origin.URL()+tt.path, tt.cookies...)
			assert.Equal(t, tt.want, resp.Header.Get("Cache-Control"))
		})
	}
}

func TestMiddleware_AnnotatesOnce(t *testing.T) {
	a := NewAnnotator(time.Minute, zerolog.Nop())
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=30")
		w.Write([]byte("a"))
		// Changes after the headers were sent must not be annotated again.
		w.Header().Set("Cache-Control", "max-age=99")
		w.Write([]byte("b"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "max-age=0, s-maxage=30", rec.Result().Header.Get("Cache-Control"))
	assert.Equal(t, "ab", rec.Body.String())
}

func TestMiddleware_NoBody(t *testing.T) {
	a := NewAnnotator(time.Minute, zerolog.Nop())
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=30")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "max-age=0, s-maxage=30", rec.Header().Get("Cache-Control"))
}

func TestMiddleware_ReadFrom(t *testing.T) {
	a := NewAnnotator(time.Minute, zerolog.Nop())
	origin := testutil.NewMockOrigin(a.Middleware)
	defer origin.Close()

	origin.SetHandler("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=45")
		io.Copy(w, strings.NewReader("streamed body"))
	})

	resp := get(t, origin.URL()+"/stream")
	assert.Equal(t, "public, max-age=0, s-maxage=45", resp.Header.Get("Cache-Control"))
}

func TestMiddleware_KillSwitch(t *testing.T) {
	a := NewAnnotator(time.Minute, zerolog.Nop())
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Trigger(r.Context())
		w.Header().Set("Cache-Control", "max-age=30")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "max-age=30", rec.Header().Get("Cache-Control"))
}

func TestMiddleware_Subrequest(t *testing.T) {
	a := NewAnnotator(time.Minute, zerolog.Nop())
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=30")
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithSubrequest(r.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, "max-age=30", rec.Header().Get("Cache-Control"))
}

func TestMiddleware_Informational(t *testing.T) {
	a := NewAnnotator(time.Minute, zerolog.Nop())
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusEarlyHints)
		w.Header().Set("Cache-Control", "max-age=30")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "max-age=0, s-maxage=30", rec.Header().Get("Cache-Control"))
}
