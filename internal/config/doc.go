// Package config loads the monitor's configuration and keeps it current.
//
// The effective configuration is built in three layers: compiled defaults,
// the TOML file, then GPUPULSE_* environment overrides. Validation rejects
// the whole result if any layer produced a bad value, reporting every
// problem at once.
//
// # Watching
//
// The Watcher polls the file's mtime and size. On change it reloads through
// the same Loader, diffs the flattened key space against the previous good
// configuration, and publishes one ConfigChanged event per differing key.
// A reload that fails to parse or validate is logged and discarded; the
// previous configuration stays in effect.
package config
