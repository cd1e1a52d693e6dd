// Package config loads and watches the agent section of config.yaml.
//
// Load(path) reads the file, applies defaults (15s scrape, 1000-report
// buffer, hourly certificate checks, prometheus detector format) and
// validates required fields and enums. Secrets are never stored in the
// file: *_env fields name the environment variables that hold them.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file when it
// changes. A reload that fails to parse is logged and the previous config
// stays in effect.
package config
