package pagecache

import (
	"io"
	"net/http"
	"sync"

	"github.com/felixge/httpsnoop"
)

// Middleware annotates the response of every top-level request served by
// next. The annotation runs once, right before the response headers are
// sent, whether the handler calls WriteHeader, writes the body directly,
// flushes, or writes nothing at all.
func (a *Annotator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(withKillSwitch(r.Context()))

		var once sync.Once
		annotate := func(code int) {
			once.Do(func() {
				a.Annotate(r, &Response{StatusCode: code, Header: w.Header()})
			})
		}

		hooked := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					// Informational responses are followed by the final one.
					if code >= 200 || code == http.StatusSwitchingProtocols {
						annotate(code)
					}
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					annotate(http.StatusOK)
					return next(b)
				}
			},
			ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
				return func(src io.Reader) (int64, error) {
					annotate(http.StatusOK)
					return next(src)
				}
			},
			Flush: func(next httpsnoop.FlushFunc) httpsnoop.FlushFunc {
				return func() {
					annotate(http.StatusOK)
					next()
				}
			},
		})

		next.ServeHTTP(hooked, r)

		// Handlers that never write still get an implicit 200.
		annotate(http.StatusOK)
	})
}
