// Package metrics provides lock-free in-process counters for the
// authentication engine. Counters are plain atomics with cache-line
// padding; export to an external metrics system is the caller's job,
// via periodic snapshots.
package metrics
