// Package config loads the controller's runtime settings via
// spf13/viper: one YAML document naming the database path, scheduler
// tuning, and one entry per configured provider (host, credentials
// pipe, catalogue/VDC/gateway names). Watch uses viper's
// fsnotify-backed OnConfigChange to pick up provider additions without
// a restart; only the provider list is safe to hot-reload; db_path and
// listen addresses take effect at the next process start.
package config
