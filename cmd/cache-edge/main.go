// Command cache-edge serves a small HTTP key/value API on top of the
// memcache storage. Every response passes through the page cache
// annotator, so cacheable GETs are held by proxies in front of it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/memcache-storage/pkg/logging"
	"github.com/Sternrassler/memcache-storage/pkg/memcache"
	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
	_ "github.com/Sternrassler/memcache-storage/pkg/memcache/driver/memcached"
	_ "github.com/Sternrassler/memcache-storage/pkg/memcache/driver/redisring"
	"github.com/Sternrassler/memcache-storage/pkg/metrics"
	"github.com/Sternrassler/memcache-storage/pkg/pagecache"
	"github.com/Sternrassler/memcache-storage/pkg/settings"
)

// maxValueSize is the largest value memcached stores by default.
const maxValueSize = 1 << 20

func main() {
	settingsFile := getEnv("SETTINGS_FILE", "")
	port := getEnv("PORT", "8080")

	cfg, err := settings.Load(settingsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", settingsFile).Msg("Failed to load settings")
	}
	logging.Setup(logging.ConfigFromSettings(cfg.Logging))
	logger := logging.NewLogger("cache-edge")

	store := memcache.New(cfg.Memcache, logging.NewLogger("memcache"))
	defer store.Close()

	annotator := pagecache.NewAnnotator(cfg.Performance.PageMaxAge(), logging.NewLogger("pagecache"))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newHandler(store, annotator, cfg.Performance.Cache.Page.MaxAge),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("state", store.State().String()).
			Msg("Starting cache-edge server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// newHandler wires the routes. maxAge is the page cache max age in seconds,
// sent as the max-age of cache reads.
func newHandler(store *memcache.Storage, annotator *pagecache.Annotator, maxAge int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /cache/{key}", getHandler(store, maxAge))
	mux.HandleFunc("PUT /cache/{key}", putHandler(store))
	mux.HandleFunc("DELETE /cache/{key}", deleteHandler(store))
	return annotator.Middleware(mux)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(store *memcache.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if !store.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprint(w, store.State())
	}
}

func getHandler(store *memcache.Storage, maxAge int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, ok := store.Get(r.Context(), store.Key(r.PathValue("key")))
		if !ok {
			w.Header().Set("Cache-Control", "no-store")
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
		w.Header().Set("Content-Length", strconv.Itoa(len(value)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(value); err != nil {
			log.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

func putHandler(store *memcache.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		var ttl time.Duration
		if v := r.URL.Query().Get("ttl"); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil || seconds < 0 {
				http.Error(w, "ttl must be a non-negative number of seconds", http.StatusBadRequest)
				return
			}
			ttl = time.Duration(seconds) * time.Second
		}

		value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueSize))
		if err != nil {
			http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
			return
		}

		if !store.Set(r.Context(), store.Key(r.PathValue("key")), value, ttl) {
			http.Error(w, "value not stored", unavailableStatus(store))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteHandler(store *memcache.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		err := store.Remove(r.Context(), store.Key(r.PathValue("key")))
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case driver.IsNotFound(err):
			http.Error(w, "not found", http.StatusNotFound)
		default:
			http.Error(w, "value not deleted", unavailableStatus(store))
		}
	}
}

func unavailableStatus(store *memcache.Storage) int {
	if !store.IsConnected() {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
