// Package memcache provides a key/value storage backed by a memcache
// cluster, for use as a shared cache between application processes.
//
// The storage is built once from settings and never fails its callers:
//
//   - Missing settings, a missing driver or unreachable servers leave the
//     storage disconnected; every operation then returns a miss or false
//     without network traffic.
//   - Operation failures are logged as warnings and reported as a miss or
//     false.
//
// # Basic Usage
//
//	cfg := &settings.Memcache{
//		Servers:   map[string]any{"127.0.0.1:11211": 1},
//		KeyPrefix: "site1",
//	}
//	store := memcache.New(cfg, logging.NewLogger("memcache"))
//	defer store.Close()
//
//	key := store.Key("page", "/node/1")
//	if value, ok := store.Get(ctx, key); ok {
//		// hit
//	}
//	store.Set(ctx, key, body, 5*time.Minute)
//
// # Drivers
//
// Drivers register themselves on import, the same way database/sql
// drivers do:
//
//	import _ "github.com/Sternrassler/memcache-storage/pkg/memcache/driver/memcached"
//
// The configured driver name defaults to "memcached". A settings
// persistent_id shares one driver handle between all storages that use it;
// servers are registered only by the first.
//
// # Metrics
//
// The storage exports Prometheus metrics:
//
//   - memcache_operations_total{operation,result} - Operations by outcome
//   - memcache_operation_duration_seconds{operation} - Driver round trips
//   - memcache_connected_storages{driver} - Connected storages
//   - memcache_servers{driver} - Registered servers
//   - memcache_codec_errors_total{operation} - JSON encode/decode errors
package memcache
