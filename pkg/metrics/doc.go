// Package metrics registers the provider's Prometheus collectors (database
// counts, per-op latency and status, buffer-cache occupancy, back-RPC
// batch counts) and exposes them over HTTP for scraping.
package metrics
