// Package logging provides structured logging with per-module log levels.
//
// # Overview
//
// Loggers are plain *slog.Logger values tagged with a module attribute.
// Output is routed automatically:
//   - to the systemd journal when journald is reachable
//   - to stdout when it is a terminal, pipe, socket or file
//   - always to an in-memory ring buffer served by the status API
//
// # Usage
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"tcp":       "debug",
//			"actuation": "warn",
//		},
//	})
//
//	logger := logging.GetLogger("tcp")
//	logger.Info("Client connected", "client", id)
//
// Loggers obtained before Initialize are fine to keep; their level variables
// are updated in place. SetLevels re-applies levels at runtime, which is what
// the config file watcher does.
//
// # Viewing Logs
//
//	journalctl -t edgelatency -f
//	journalctl -t edgelatency MODULE=ble
//	journalctl -t edgelatency -p warning
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	tcp = "debug"
//	api = "warn"
package logging
