// Package main hosts the preloader service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the session API and a catch-all route that
//     resolves the request path and answers 302 Found.
//   - Sessions: internal/session.Controller couples an event bus (preloaded, restart, show-intermediate-page)
//     with a preload.Aggregator that runs weighted tasks one at a time in submission order. The Manager keeps
//     the live controllers and the loading/intermediate view state their listeners drive.
//   - Redirect chain: registry lookup by first path segment (fetched through the Colly fetcher), then the /s/
//     override, then the default site. Step failures are logged and fall through; the chain always resolves.
//   - Persistence & fanout: every navigation is journaled (memory ring or Postgres) and reported to the
//     progress Hub, which batches lifecycle events to the zap and Prometheus sinks.
//
// Quick checklist:
//   - Configure env vars: PRELOADER_SERVER_PORT, PRELOADER_REGISTRY_URL, PRELOADER_REDIRECT_DEFAULT_URL,
//     PRELOADER_DB_DSN when the journal should outlive the process.
//   - Run locally: go run ./cmd/preloader serve --config config.yaml.
//   - One-off resolution: go run ./cmd/preloader resolve /s/example.org.
package main
