// Package confloader loads server configuration from files, environment
// variables and explicit overrides, using koanf as the underlying
// library.
//
// Priority (highest to lowest):
//
//  1. Explicit overrides (CLI flags, loaded via LoadMap)
//  2. Environment variables (NOX_ prefix)
//  3. Configuration files (YAML)
//  4. Default values
//
// A Watcher built on fsnotify reports config file changes so the
// process can reload settings that are safe to change at runtime.
package confloader
