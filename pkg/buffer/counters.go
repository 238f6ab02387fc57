package buffer

// Counters tracks the ingest-path self-metrics spec.md §4.4/§8 requires:
// how many points were accepted, flushed, or rejected as too old/new.
// Read with Buffer.Snapshot; exported as Prometheus counters by
// pkg/selfmetrics.
type Counters struct {
	ReceivedPoints int64
	FlushedPoints  int64
	PastPoints     int64
	FuturePoints   int64
}
