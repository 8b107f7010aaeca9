package memcache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/memcache-storage/pkg/memcache/driver"
	"github.com/Sternrassler/memcache-storage/pkg/settings"
)

// ErrDisconnected is returned by Remove when the storage is not connected.
var ErrDisconnected = errors.New("memcache: storage disconnected")

// Storage is a key/value store backed by a memcache cluster.
//
// A Storage that failed to connect stays disconnected for its lifetime and
// answers every operation with a miss or false. A Storage is safe for
// concurrent use.
type Storage struct {
	logger     zerolog.Logger
	driverName string
	keyPrefix  string

	// handle is nil unless the storage ever connected.
	handle driver.Driver
	shared bool

	connected atomic.Bool
}

// Option configures a Storage.
type Option func(*options)

type options struct {
	opener        driver.Opener
	driverOptions driver.Options
}

// WithOpener makes the Storage open its handle from opener instead of the
// driver registry. Persistent handle sharing does not apply.
func WithOpener(opener driver.Opener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithDriverOptions overrides the driver options applied on connect.
func WithDriverOptions(opts driver.Options) Option {
	return func(o *options) {
		o.driverOptions = opts
	}
}

// New creates a Storage from cfg and connects it to the configured servers.
//
// New never fails. Missing configuration, an unavailable driver or a failed
// server registration are logged and leave the Storage disconnected.
func New(cfg *settings.Memcache, logger zerolog.Logger, opts ...Option) *Storage {
	o := options{driverOptions: driver.DefaultOptions()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Storage{
		logger:     logger.With().Str("component", "memcache").Logger(),
		driverName: cfg.DriverName(),
	}
	s.connect(cfg, o)

	connected := ConnectedStorages.WithLabelValues(s.driverName)
	if s.connected.Load() {
		connected.Inc()
	} else {
		connected.Add(0)
	}
	return s
}

func (s *Storage) connect(cfg *settings.Memcache, o options) {
	if cfg == nil {
		s.logger.Info().Msg("No memcache settings found, storage disabled")
		return
	}
	s.keyPrefix = cfg.KeyPrefix

	if len(cfg.Servers) == 0 {
		s.logger.Error().Msg("Memcache settings have no servers, storage disabled")
		return
	}

	handle, err := s.open(cfg, o)
	if err != nil {
		return
	}

	log := s.logger.With().Str("driver", s.driverName).Logger()

	if err := handle.SetOptions(o.driverOptions); err != nil {
		log.Error().Err(err).Msg("Failed to apply memcache driver options")
		s.discard(handle)
		return
	}

	if registered := handle.ServerList(); len(registered) > 0 {
		log.Debug().
			Str("persistent_id", cfg.PersistentID).
			Int("servers", len(registered)).
			Msg("Reusing persistent memcache handle")
	} else {
		servers, err := driver.ParseServers(cfg.Servers)
		if err != nil {
			log.Error().Err(err).Msg("Invalid memcache server list")
			s.discard(handle)
			return
		}
		if err := handle.AddServers(servers); err != nil {
			log.Error().
				Str("result", driver.ResultMessage(err)).
				Msg("Failed to register memcache servers")
			s.discard(handle)
			return
		}
		log.Info().Int("servers", len(servers)).Msg("Memcache servers registered")
	}

	s.handle = handle
	RegisteredServers.WithLabelValues(s.driverName).Set(float64(len(handle.ServerList())))
	s.connected.Store(true)
}

// discard closes a handle the storage will not use. Shared handles belong to
// the registry and stay open.
func (s *Storage) discard(handle driver.Driver) {
	if s.shared {
		return
	}
	if err := handle.Close(); err != nil {
		s.logger.Debug().Err(err).Str("driver", s.driverName).Msg("Failed to close unused memcache handle")
	}
}

func (s *Storage) open(cfg *settings.Memcache, o options) (driver.Driver, error) {
	if o.opener != nil {
		handle, err := o.opener.Open()
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to open memcache driver")
		}
		return handle, err
	}

	if !driver.Available(s.driverName) {
		s.logger.Info().
			Str("driver", s.driverName).
			Strs("available", driver.Drivers()).
			Msg("Memcache driver not available, storage disabled")
		return nil, driver.ErrUnknownDriver
	}

	handle, err := driver.Open(s.driverName, cfg.PersistentID)
	if err != nil {
		s.logger.Error().Err(err).Str("driver", s.driverName).Msg("Failed to open memcache driver")
		return nil, err
	}
	s.shared = cfg.PersistentID != ""
	return handle, nil
}

// Get returns the value stored under key. The second result is false on a
// miss, on any failure and whenever the storage is disconnected. An empty
// stored value is a hit.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.connected.Load() {
		Operations.WithLabelValues("get", resultSkipped).Inc()
		return nil, false
	}

	start := time.Now()
	value, err := s.handle.Get(ctx, key)
	OperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		Operations.WithLabelValues("get", resultHit).Inc()
		if value == nil {
			value = []byte{}
		}
		return value, true
	case driver.IsNotFound(err):
		Operations.WithLabelValues("get", resultMiss).Inc()
	default:
		Operations.WithLabelValues("get", resultFailure).Inc()
		s.logger.Warn().
			Str("key", key).
			Str("result", driver.ResultMessage(err)).
			Msg("Failed to get data from memcache")
	}
	return nil, false
}

// Set stores value under key. A zero expiration never expires. Set reports
// whether the value was stored.
func (s *Storage) Set(ctx context.Context, key string, value []byte, expiration time.Duration) bool {
	if !s.connected.Load() {
		Operations.WithLabelValues("set", resultSkipped).Inc()
		return false
	}

	start := time.Now()
	err := s.handle.Set(ctx, key, value, expiration)
	OperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())

	if err != nil {
		Operations.WithLabelValues("set", resultFailure).Inc()
		s.logger.Warn().
			Str("key", key).
			Str("result", driver.ResultMessage(err)).
			Msg("Failed to set data in memcache")
		return false
	}
	Operations.WithLabelValues("set", resultSuccess).Inc()
	return true
}

// Delete removes key. It reports false when the key was absent, on failure
// and when the storage is disconnected.
func (s *Storage) Delete(ctx context.Context, key string) bool {
	return s.Remove(ctx, key) == nil
}

// Remove removes key like Delete and reports why nothing was removed:
// ErrDisconnected, an error matching driver.ErrNotFound for an absent key,
// or the driver failure.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if !s.connected.Load() {
		Operations.WithLabelValues("delete", resultSkipped).Inc()
		return ErrDisconnected
	}

	start := time.Now()
	err := s.handle.Delete(ctx, key)
	OperationDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		Operations.WithLabelValues("delete", resultSuccess).Inc()
	case driver.IsNotFound(err):
		Operations.WithLabelValues("delete", resultMiss).Inc()
		s.logger.Debug().Str("key", key).Msg("Memcache key to delete not found")
	default:
		Operations.WithLabelValues("delete", resultFailure).Inc()
		s.logger.Warn().
			Str("key", key).
			Str("result", driver.ResultMessage(err)).
			Msg("Failed to delete data from memcache")
	}
	return err
}

// IsConnected reports whether the storage reached the cluster at
// construction time and has not been closed.
func (s *Storage) IsConnected() bool {
	return s.connected.Load()
}

// State returns the connectivity state.
func (s *Storage) State() State {
	if s.connected.Load() {
		return Connected
	}
	return Disconnected
}

// KeyPrefix returns the configured key prefix, or "" when none is set.
func (s *Storage) KeyPrefix() string {
	return s.keyPrefix
}

// Close disconnects the storage. Handles shared through a persistent id
// stay open for the other storages using them.
func (s *Storage) Close() error {
	if !s.connected.CompareAndSwap(true, false) {
		return nil
	}
	ConnectedStorages.WithLabelValues(s.driverName).Dec()
	if s.shared {
		return nil
	}
	return s.handle.Close()
}
