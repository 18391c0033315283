// Package api hosts the HTTP server, middleware, and REST handlers of the
// preloader. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - /api/sessions/... to drive preload sessions and confirm restarts.
//   - GET /api/navigations for the navigation journal.
//   - GET /* resolves the request path and answers with a 302.
package api
