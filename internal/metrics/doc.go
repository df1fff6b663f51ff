// Package metrics provides observability hooks for themebuilder pipeline runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never require nil checks at call sites:
//
//	p := pipeline.New(cfg, runner).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// A run is a one-shot CLI invocation, so the Prometheus recorder is not scraped.
// Instead its registry is written to a node-exporter textfile at the end of the
// run (see WriteTextfile).
package metrics
