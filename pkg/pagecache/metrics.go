package pagecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Annotations tracks annotated responses by outcome
var Annotations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pagecache_annotations_total",
		Help: "Total number of responses inspected by the page cache annotator",
	},
	[]string{"result"}, // "rewritten", "subrequest", "request_policy", "response_policy", "disabled", "no_max_age"
)
