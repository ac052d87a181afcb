// Package metrics aggregates the samples produced while a scenario runs.
//
// # Collector
//
// The central [Collector] type is shared by every virtual user:
//
//	collector := metrics.NewCollector()
//
//	// One sample per request; statusCode is 0 when no response arrived.
//	collector.RecordRequest(latency, resp.StatusCode, err)
//	collector.RecordCheck("status is 200", resp.StatusCode == 200)
//	collector.RecordIteration(false)
//
//	stats := collector.Stats(elapsed)
//
// A request is counted as failed when it produced a transport error or a
// status code of 400 or above, mirroring k6's http_req_failed.
//
// # Statistics
//
// [Stats] is a point-in-time copy. Besides the fixed P50/P90/P95/P99 fields it
// keeps a copy of the latency histogram so [Stats.Percentile] answers any
// percentile threshold exactly to the histogram's precision (three significant
// figures between 1µs and 60s).
//
// # Observers
//
// [Observer] implementations registered with [Collector.AddObserver] see every
// sample after it is recorded; the Prometheus exporter in the promexport
// subpackage is one.
package metrics
