package memcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)

var (
	// Operations tracks storage operations by outcome
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memcache_operations_total",
			Help: "Total number of memcache storage operations",
		},
		[]string{"operation", "result"}, // "get|set|delete", "hit|miss|success|failure|skipped"
	)

	// OperationDuration tracks driver round trips
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memcache_operation_duration_seconds",
			Help:    "Duration of memcache driver operations",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"operation"},
	)

	// ConnectedStorages counts the storages currently connected per driver
	ConnectedStorages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memcache_connected_storages",
			Help: "Number of memcache storages currently connected",
		},
		[]string{"driver"},
	)

	// RegisteredServers tracks the number of servers registered with the driver
	RegisteredServers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memcache_servers",
			Help: "Number of servers registered with the memcache driver",
		},
		[]string{"driver"},
	)

	// CodecErrors tracks JSON values that could not be encoded or decoded
	CodecErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memcache_codec_errors_total",
			Help: "Total number of memcache value encode/decode errors",
		},
		[]string{"operation"}, // "encode", "decode"
	)
)
