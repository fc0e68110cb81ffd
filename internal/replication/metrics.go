package replication

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fullSyncCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tendis",
		Subsystem: "repl",
		Name:      "full_sync_total",
		Help:      "The total number of full syncs supplied",
	})
	binlogBatchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tendis",
		Subsystem: "repl",
		Name:      "binlog_batch_total",
		Help:      "The total number of non-empty binlog batches pushed to slaves",
	})
	binlogBytesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tendis",
		Subsystem: "repl",
		Name:      "binlog_bytes_total",
		Help:      "The total bytes of non-empty binlog frames pushed to slaves",
	})
	slaveEvictCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tendis",
		Subsystem: "repl",
		Name:      "slave_evict_total",
		Help:      "The total number of slaves evicted from the push registry",
	})
)
