// Package api serves the hwcodec HTTP API: encoder listing, capability
// probes, saved validation results, a codec event stream and metrics.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/hwcodec/internal/api/models"
	"github.com/smazurov/hwcodec/internal/encoders"
	"github.com/smazurov/hwcodec/internal/events"
	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/version"
)

// Prober runs capability probes. The hwcodec package provides the
// production implementation through HWCodecProber.
type Prober interface {
	TestEncode(ctx context.Context, maxDescs int, luids []int64, ec hwcodec.EncodeContext) ([]hwcodec.AdapterDesc, error)
	DriverSupport(ctx context.Context, driver hwcodec.Driver) bool
	Adapters() []int64
}

// HWCodecProber probes real hardware through hwcodec.
type HWCodecProber struct{}

func (HWCodecProber) TestEncode(ctx context.Context, maxDescs int, luids []int64, ec hwcodec.EncodeContext) ([]hwcodec.AdapterDesc, error) {
	return hwcodec.TestEncode(ctx, maxDescs, luids, ec)
}

func (HWCodecProber) DriverSupport(ctx context.Context, driver hwcodec.Driver) bool {
	return hwcodec.DriverSupport(ctx, driver)
}

func (HWCodecProber) Adapters() []int64 { return hwcodec.Adapters() }

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	FFmpegBinary      string
	ValidationFile    string       // TOML written by validate-encoders
	EventBus          *events.Bus  // source of the /api/events stream
	Prober            Prober       // nil uses HWCodecProber
	PrometheusHandler http.Handler // optional, served at /metrics
	OnListening       func()       // called once the listener is bound

	// ListEncoders overrides the ffmpeg -encoders query.
	ListEncoders func(ctx context.Context) (*encoders.EncoderList, error)
}

// Server is the huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	prober     Prober
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	addPreflightHandler(mux)

	config := huma.DefaultConfig("hwcodec API", version.String())
	config.Info.Description = "Hardware video encoder discovery and probing"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		prober:   opts.Prober,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}
	if server.prober == nil {
		server.prober = HWCodecProber{}
	}
	if opts.ListEncoders == nil {
		opts.ListEncoders = func(ctx context.Context) (*encoders.EncoderList, error) {
			return encoders.GetFFmpegEncoders(ctx, opts.FFmpegBinary)
		}
	}

	api.UseMiddleware(CORSMiddleware)
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting hwcodec API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.options.OnListening != nil {
		s.options.OnListening()
	}
	return s.httpServer.Serve(ln)
}

// Stop closes the listener and every open connection, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{Status: "ok", Message: "API is healthy"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application and ffmpeg version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:       info.Version,
				GitCommit:     info.GitCommit,
				BuildDate:     info.BuildDate,
				GoVersion:     info.GoVersion,
				Platform:      info.Platform,
				FFmpegVersion: encoders.GetFFmpegVersion(ctx, s.options.FFmpegBinary),
			},
		}, nil
	})

	s.registerEncoderRoutes()
	s.registerEventRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
