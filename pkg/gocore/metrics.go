package pkg

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registry is the package-level metrics registry. Callers that want
// to expose these counters through their own metrics server can fetch
// it with Registry(); nothing in this package requires a server to be
// running.
var registry = prometheus.NewRegistry()

// Registry returns the prometheus registry this package registers its
// counters on.
func Registry() *prometheus.Registry { return registry }

var (
	recordsAppendedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_records_appended_total",
		Help: "Records appended, by table path.",
	}, []string{"table"})
	recordsDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_records_deleted_total",
		Help: "Records marked deleted, by table path.",
	}, []string{"table"})
	memoBlocksAllocatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_memo_blocks_allocated_total",
		Help: "Memo blocks allocated, by memo file path.",
	}, []string{"memo"})
	memoBlocksFreedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_memo_blocks_freed_total",
		Help: "Memo blocks freed by compaction, by memo file path.",
	}, []string{"memo"})
	indexCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_index_cache_hits_total",
		Help: "Index page cache hits, by index file path.",
	}, []string{"index"})
	indexCacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_index_cache_misses_total",
		Help: "Index page cache misses, by index file path.",
	}, []string{"index"})
	transactionsCommittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_transactions_committed_total",
		Help: "Transactions committed, by table path.",
	}, []string{"table"})
	transactionsRolledBackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foxi_transactions_rolled_back_total",
		Help: "Transactions rolled back, by table path.",
	}, []string{"table"})
)

var registerOnce sync.Once

func init() {
	registerOnce.Do(func() {
		registry.MustRegister(
			recordsAppendedTotal, recordsDeletedTotal,
			memoBlocksAllocatedTotal, memoBlocksFreedTotal,
			indexCacheHitsTotal, indexCacheMissesTotal,
			transactionsCommittedTotal, transactionsRolledBackTotal,
		)
	})
}

type tableMetrics struct {
	recordsAppended prometheus.Counter
	recordsDeleted  prometheus.Counter
	txnCommitted    prometheus.Counter
	txnRolledBack   prometheus.Counter
}

func tableMetricsFor(path string) *tableMetrics {
	return &tableMetrics{
		recordsAppended: recordsAppendedTotal.WithLabelValues(path),
		recordsDeleted:  recordsDeletedTotal.WithLabelValues(path),
		txnCommitted:    transactionsCommittedTotal.WithLabelValues(path),
		txnRolledBack:   transactionsRolledBackTotal.WithLabelValues(path),
	}
}

type memoMetrics struct {
	blocksAllocated prometheus.Counter
	blocksFreed     prometheus.Counter
}

func memoMetricsFor(path string) *memoMetrics {
	return &memoMetrics{
		blocksAllocated: memoBlocksAllocatedTotal.WithLabelValues(path),
		blocksFreed:     memoBlocksFreedTotal.WithLabelValues(path),
	}
}

type indexMetrics struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

func indexMetricsFor(path string) *indexMetrics {
	return &indexMetrics{
		cacheHits:   indexCacheHitsTotal.WithLabelValues(path),
		cacheMisses: indexCacheMissesTotal.WithLabelValues(path),
	}
}
