// Package selfmetrics exposes Hisser's internal counters — ingest
// past/future/received/flushed points, housework status — as Prometheus
// metrics, and serves them (plus a /healthz summary) on a small admin
// HTTP listener. Grounded on pkg/server/monitor/compaction.go's
// status-map shape, rewired onto github.com/prometheus/client_golang
// instead of a hand-rolled JSON blob.
package selfmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hisserdb/hisser/pkg/buffer"
	"github.com/hisserdb/hisser/pkg/httpx"
	"github.com/hisserdb/hisser/pkg/taskmanager"
)

// BufferSource is satisfied by *buffer.Buffer; kept as an interface so
// tests can substitute a fake.
type BufferSource interface {
	Snapshot() buffer.Counters
}

// Collector adapts a Buffer's counters into Prometheus counters and a
// Manager's task status into a per-kind gauge, satisfying
// prometheus.Collector.
type Collector struct {
	Buf  BufferSource
	Task *taskmanager.Manager
	Kind []string // housework kinds to report status for

	received *prometheus.Desc
	flushed  *prometheus.Desc
	past     *prometheus.Desc
	future   *prometheus.Desc
	running  *prometheus.Desc
}

// NewCollector builds a Collector. kinds lists the housework task names
// (e.g. "merge", "downsample", "cleanup") to report running-status for.
func NewCollector(buf BufferSource, task *taskmanager.Manager, kinds []string) *Collector {
	return &Collector{
		Buf:  buf,
		Task: task,
		Kind: kinds,
		received: prometheus.NewDesc("hisser_received_points_total", "Points accepted by the ingest buffer.", nil, nil),
		flushed:  prometheus.NewDesc("hisser_flushed_points_total", "Points flushed from the ingest buffer to disk.", nil, nil),
		past:     prometheus.NewDesc("hisser_past_points_total", "Points rejected for being older than the ring window.", nil, nil),
		future:   prometheus.NewDesc("hisser_future_points_total", "Points rejected for being further ahead than the ring window.", nil, nil),
		running:  prometheus.NewDesc("hisser_task_manager_running", "Whether a housework task of this kind is currently running.", []string{"kind"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.received
	ch <- c.flushed
	ch <- c.past
	ch <- c.future
	ch <- c.running
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.Buf.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(snap.ReceivedPoints))
	ch <- prometheus.MustNewConstMetric(c.flushed, prometheus.CounterValue, float64(snap.FlushedPoints))
	ch <- prometheus.MustNewConstMetric(c.past, prometheus.CounterValue, float64(snap.PastPoints))
	ch <- prometheus.MustNewConstMetric(c.future, prometheus.CounterValue, float64(snap.FuturePoints))

	for _, kind := range c.Kind {
		running := 0.0
		if c.Task != nil && c.Task.IsRunning(kind) {
			running = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running, kind)
	}
}

// healthReport is the /healthz JSON body.
type healthReport struct {
	OK     bool                         `json:"ok"`
	Tasks  map[string]taskmanager.Status `json:"tasks"`
	Buffer buffer.Counters              `json:"buffer"`
}

// NewAdminMux builds the admin HTTP surface (§6.1): /metrics (Prometheus
// exposition) and /healthz (task manager + buffer status as JSON). This
// is deliberately not a render/query API — it never serves metric data,
// only operational status — so it uses stdlib net/http.ServeMux rather
// than gorilla/mux, matching SPEC_FULL.md's scope decision.
func NewAdminMux(registry *prometheus.Registry, buf BufferSource, task *taskmanager.Manager, kinds []string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{OK: true, Tasks: make(map[string]taskmanager.Status), Buffer: buf.Snapshot()}
		for _, kind := range kinds {
			s := task.Status(kind)
			if s.LastErr != nil {
				report.OK = false
			}
			report.Tasks[kind] = s
		}
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		httpx.RespondJSON(w, status, report)
	})
	return mux
}
