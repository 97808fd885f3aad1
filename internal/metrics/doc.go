// Package metrics provides the observability hooks for syncd's reporter and
// daemon loop.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// components use NoopRecorder, which implements the Recorder interface with
// no-op methods.
//
// # Architecture
//
//  1. Recorder interface - status, outcome, cycle, sink and diff observations
//  2. NoopRecorder - default implementation that does nothing
//  3. PrometheusRecorder - registers syncd_* collectors on a registry
//
// # Usage Pattern
//
// Components receive a Recorder through dependency injection:
//
//	rec := metrics.NewPrometheusRecorder(registry)
//	r, err := reporter.New(sink, reporter.WithRecorder(rec))
//
// The daemon exposes the registry through HTTPHandler when
// monitoring.metrics.enabled is set.
package metrics
