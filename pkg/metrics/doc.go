// Package metrics provides Prometheus instrumentation for streamflow components.
//
// A Registry is attached to streams through stream.Config.Metrics and to
// pipelines through the registry of their last stream. All recording methods
// are safe to call on a nil *Registry, so uninstrumented streams pay nothing.
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
//	cfg := stream.DefaultConfig()
//	cfg.Metrics = m
//	w := stream.NewWritableWithConfig(loop, sink, cfg)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
//   - streamflow_readable_chunks_pushed_total: chunks pushed into readable buffers
//   - streamflow_readable_chunks_read_total: chunks delivered to consumers
//   - streamflow_stream_buffer_length: buffered length, labelled by side
//   - streamflow_writable_chunks_written_total: chunks accepted by writables
//   - streamflow_writable_bytes_written_total: bytes accepted by writables
//   - streamflow_backpressure_events_total: writes that returned false
//   - streamflow_backpressure_drains_total: drain events emitted
//   - streamflow_stream_errors_total: error events emitted
//   - streamflow_stream_destroyed_total: destroyed streams
//   - streamflow_pipeline_completed_total: pipelines completed, by outcome
//   - streamflow_pipeline_duration_seconds: pipeline run time, by outcome
package metrics
