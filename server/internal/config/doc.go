// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort         : port for the impact receiver (default 50051)
//   - HTTPPort         : port for the dashboard, REST API and WebSocket hub (default 8080)
//   - Auth.Mode        : "apikey" or "none"
//   - Auth.KeyEnv      : environment variable holding the expected API key
//   - Auth.Header      : gRPC metadata/HTTP header name (default "x-api-key")
//   - Store.Backend    : memory | sqlite | postgres (default memory)
//   - Store.Condition  : health | status, the authoritative condition variant
//   - Store.URLEnv/KeyEnv: environment variables with the service URL and key
//   - Refresh.Interval : live view polling period (default 5s)
//   - Impact.SpeedLimitKmh: damage threshold for agent reports (default 35)
//   - Events           : NATS change events (disabled without a URL)
//   - Alerts           : per-record rules, webhooks and sweep interval; rules and webhooks hot-reload
//
// Load(path) applies defaults before unmarshalling, then validates. Missing
// store credentials are not a validation error: StoreConfig.Problems lists
// them so the server can log them and keep running.
package config
