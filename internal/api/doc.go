// Package api hosts the ops HTTP server that runs alongside a crawl:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the current run snapshot.
package api
