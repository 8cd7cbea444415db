// Package logging provides structured logging with per-module log levels.
//
// Initialize once at startup, then fetch module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{"codec": "debug"},
//	})
//	logger := logging.GetLogger("hwcodec")
//	logger.Info("Encoder created", "encoder", "h264_nvenc")
//
// Loggers fetched before Initialize are cached and pick up the configured
// level once Initialize runs.
//
// When Config.Journal is set and journald is reachable, records are also sent
// to the systemd journal under the "hwcodec" identifier:
//
//	journalctl -t hwcodec MODULE=codec
//
// The shared library build writes to stderr (Config.Output = "stderr") so the
// host process keeps stdout.
package logging
