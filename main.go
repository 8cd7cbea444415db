package main

import (
	"errors"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/hwcodec/cmd"
	"github.com/smazurov/hwcodec/internal/api"
	"github.com/smazurov/hwcodec/internal/config"
	"github.com/smazurov/hwcodec/internal/events"
	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/metrics/exporters"
	"github.com/smazurov/hwcodec/internal/systemd"
	"github.com/smazurov/hwcodec/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"hwcodec.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8091" toml:"api.port" env:"API_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// FFmpeg settings
	BinaryPath  string `help:"Path to the ffmpeg binary" default:"ffmpeg" toml:"ffmpeg.binary" env:"FFMPEG_BINARY"`
	ProgressDir string `help:"Directory for ffmpeg progress sockets, empty disables progress metrics" default:"" toml:"ffmpeg.progress_dir" env:"FFMPEG_PROGRESS_DIR"`

	// Encoder settings
	ValidationFile string `help:"Validation results file" default:"validated_encoders.toml" toml:"encoders.validation_file" env:"ENCODERS_VALIDATION_FILE"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingJournal  bool   `help:"Also log to the systemd journal" default:"false" toml:"logging.journal" env:"LOGGING_JOURNAL"`
	LoggingHwcodec  string `help:"Encoder/decoder logging level" default:"" toml:"logging.hwcodec" env:"LOGGING_HWCODEC"`
	LoggingEncoders string `help:"Encoder discovery logging level" default:"" toml:"logging.encoders" env:"LOGGING_ENCODERS"`
	LoggingProbe    string `help:"Probe logging level" default:"" toml:"logging.probe" env:"LOGGING_PROBE"`
	LoggingAPI      string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

func (o *Options) loggingConfig() logging.Config {
	cfg := config.LoadLoggingConfig(o.Config)
	cfg.Level, cfg.Format, cfg.Journal = o.LoggingLevel, o.LoggingFormat, o.LoggingJournal
	for module, level := range map[string]string{
		"hwcodec":  o.LoggingHwcodec,
		"encoders": o.LoggingEncoders,
		"probe":    o.LoggingProbe,
		"api":      o.LoggingAPI,
	} {
		if level != "" {
			cfg.Modules[module] = level
		}
	}
	return cfg
}

func main() {
	validateCmd := cmd.CreateValidateEncodersCmd()

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}
		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		eventBus := events.New()
		hwcodec.SetFFmpegBinary(opts.BinaryPath)
		hwcodec.SetEventBus(eventBus)
		hwcodec.SetProgressDir(opts.ProgressDir)

		if out := validateCmd.Flags().Lookup("output"); out != nil && !out.Changed {
			_ = out.Value.Set(opts.ValidationFile)
		}

		apiOpts := &api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			FFmpegBinary:   opts.BinaryPath,
			ValidationFile: opts.ValidationFile,
			EventBus:       eventBus,
		}
		apiOpts.OnListening = func() {
			if sent, notifyErr := systemd.NotifyReady(); notifyErr != nil {
				logger.Warn("Failed to notify systemd", "error", notifyErr)
			} else if sent {
				logger.Debug("Notified systemd readiness")
			}
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			logger.Info("Starting hwcodec", "version", version.Get().Summary(), "ffmpeg", opts.BinaryPath)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = systemd.NotifyStopping()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
		})
	})

	root := cli.Root()
	root.Use = "hwcodec"
	root.Short = "Hardware video encoder discovery, probing and encoding"
	root.Version = version.Get().Summary()

	root.AddCommand(validateCmd)
	root.AddCommand(cmd.CreateProbeCmd())
	root.AddCommand(cmd.CreateEncodeCmd())
	root.AddCommand(cmd.CreateDecodeCmd())
	root.AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
