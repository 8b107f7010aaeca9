// Package metrics exposes the Prometheus registry shared by the storage,
// its drivers and the page cache annotator.
// Metrics are defined in their respective packages (memcache,
// driver/memcached, pagecache) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all package metrics use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the Prometheus gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving the metrics in the Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Storage Metrics (pkg/memcache):
//   - memcache_operations_total{operation, result} (Counter): get/set/delete by hit, miss, success, failure, skipped
//   - memcache_operation_duration_seconds{operation} (Histogram): Driver round trip duration
//   - memcache_connected_storages{driver} (Gauge): Storages currently connected
//   - memcache_servers{driver} (Gauge): Servers registered with the driver
//   - memcache_codec_errors_total{operation} (Counter): JSON encode/decode failures
//
// Driver Metrics (pkg/memcache/driver/memcached):
//   - memcache_server_ejections_total{server} (Counter): Servers removed from the ring after repeated failures
//
// Page Cache Metrics (pkg/pagecache):
//   - pagecache_annotations_total{result} (Counter): Responses inspected, by rewrite or skip reason
//
// Example Prometheus Queries:
//
//   # Hit Rate
//   sum(rate(memcache_operations_total{operation="get",result="hit"}[5m])) /
//   sum(rate(memcache_operations_total{operation="get",result!="skipped"}[5m]))
//
//   # Disconnected Storage
//   memcache_connected_storages == 0
//
//   # Operation Failure Rate
//   sum(rate(memcache_operations_total{result="failure"}[5m])) by (operation)
//
//   # P95 Driver Latency
//   histogram_quantile(0.95, rate(memcache_operation_duration_seconds_bucket[5m]))
//
//   # Share of Pages Cached by Proxies Only
//   rate(pagecache_annotations_total{result="rewritten"}[5m]) /
//   sum(rate(pagecache_annotations_total[5m]))
