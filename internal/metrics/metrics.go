package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom", Name: "score_events_recorded_total", Help: "Score events appended to the ledger",
	}, []string{"type"})
	NoopMutations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classroom", Name: "noop_mutations_total", Help: "Score mutations skipped because delta was zero",
	})
	ReconcileRepairs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom", Name: "reconcile_repairs_total", Help: "Ledger pointers repaired by reconciliation",
	}, []string{"strategy"})
	ReconcileOrphans = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classroom", Name: "reconcile_orphans_total", Help: "Events left orphaned by a reconciliation pass",
	})
	LegacyMigrated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classroom", Name: "legacy_events_migrated_total", Help: "Events synthesized from embedded deduction history",
	})
	PersistErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classroom", Name: "persist_errors_total", Help: "Failed local document saves",
	})
	RemoteSync = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom", Name: "remote_sync_total", Help: "Remote sync attempts",
	}, []string{"op", "result"})
	RemotePing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "classroom", Name: "remote_ping_seconds", Help: "Remote store ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(EventsRecorded, NoopMutations, ReconcileRepairs, ReconcileOrphans,
		LegacyMigrated, PersistErrors, RemoteSync, RemotePing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveRemotePing(d time.Duration) { RemotePing.Observe(d.Seconds()) }
