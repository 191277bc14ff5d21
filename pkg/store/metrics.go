package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_operations_total",
		Help: "The total number of facade operations, by operation name and outcome.",
	}, []string{"operation", "outcome"})

	rehashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_rehashes_total",
		Help: "The total number of synchronous primary-index rehashes performed.",
	})

	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_sweeps_total",
		Help: "The total number of expiration sweeps performed.",
	})

	expiredEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_expired_entries_total",
		Help: "The total number of entries released by expiration sweeps.",
	})

	bucketCountGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "store_primary_bucket_count",
		Help: "The current number of buckets in the primary index.",
	})
)

func observeOp(operation string, applied bool) {
	outcome := "no_op"
	if applied {
		outcome = "applied"
	}
	opsTotal.WithLabelValues(operation, outcome).Inc()
}
