package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/hwcodec/internal/api/models"
	"github.com/smazurov/hwcodec/internal/codec"
	"github.com/smazurov/hwcodec/internal/encoders"
	"github.com/smazurov/hwcodec/internal/hwcodec"
)

// registerEncoderRoutes registers encoder listing, driver and probe endpoints.
func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "List Encoders",
		Description: "List video encoders compiled into ffmpeg, hardware ones only unless all is set",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *models.EncodersInput) (*models.EncodersResponse, error) {
		list, err := s.options.ListEncoders(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list encoders", err)
		}

		filtered := encoders.FilterEncoders(list, encoders.EncoderFilter{
			Type:    string(encoders.VideoEncoder),
			Search:  input.Search,
			Hwaccel: !input.All,
		})
		return &models.EncodersResponse{
			Body: models.EncoderData{
				Encoders: filtered.VideoEncoders,
				Count:    len(filtered.VideoEncoders),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-drivers",
		Method:      http.MethodGet,
		Path:        "/api/drivers",
		Summary:     "List Drivers",
		Description: "Report which backend families can run on this host",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.DriversResponse, error) {
		data := models.DriversData{Adapters: s.prober.Adapters()}
		if data.Adapters == nil {
			data.Adapters = []int64{}
		}
		for _, driver := range []hwcodec.Driver{hwcodec.DriverFFmpegVRAM, hwcodec.DriverMFX} {
			data.Drivers = append(data.Drivers, models.DriverInfo{
				Name:      driver.String(),
				Supported: s.prober.DriverSupport(ctx, driver),
			})
		}
		return &models.DriversResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-encode",
		Method:      http.MethodPost,
		Path:        "/api/probe/encode",
		Summary:     "Probe Encoders",
		Description: "Run test encodes and return the encoders that work on each adapter",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422, 500},
	}, func(ctx context.Context, input *models.ProbeEncodeRequest) (*models.ProbeEncodeResponse, error) {
		ec, err := encodeContextFromRequest(&input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid probe request", err)
		}

		descs, err := s.prober.TestEncode(ctx, input.Body.MaxDescs, input.Body.LUIDs, ec)
		if err != nil {
			if errors.Is(err, hwcodec.ErrInvalidParam) {
				return nil, huma.Error400BadRequest("Invalid probe request", err)
			}
			return nil, huma.Error500InternalServerError("Probe failed", err)
		}
		if descs == nil {
			descs = []hwcodec.AdapterDesc{}
		}
		return &models.ProbeEncodeResponse{
			Body: models.ProbeEncodeData{Adapters: descs, Count: len(descs)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-validation",
		Method:      http.MethodGet,
		Path:        "/api/validation",
		Summary:     "Validation Results",
		Description: "Return the results saved by the last validate-encoders run",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(_ context.Context, _ *struct{}) (*models.ValidationResponse, error) {
		if s.options.ValidationFile == "" {
			return nil, huma.Error404NotFound("No validation file configured")
		}
		results, err := encoders.LoadValidationResults(s.options.ValidationFile)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, huma.Error404NotFound("Validation required - run validate-encoders first", err)
			}
			return nil, huma.Error500InternalServerError("Failed to load validation results", err)
		}
		return &models.ValidationResponse{Body: *results}, nil
	})
}

func encodeContextFromRequest(req *models.ProbeEncodeRequestData) (hwcodec.EncodeContext, error) {
	driver, err := hwcodec.ParseDriver(req.Driver)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	api, err := hwcodec.ParseAPI(req.API)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	format, err := hwcodec.ParseDataFormat(req.Format)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	return hwcodec.EncodeContext{
		Driver:     driver,
		Name:       req.Encoder,
		API:        api,
		DataFormat: format,
		Width:      req.Width,
		Height:     req.Height,
		Kbs:        req.Kbs,
		FPS:        req.FPS,
		GOP:        req.GOP,
		Tuning:     &codec.Tuning{Quality: codec.QualityMedium, RateControl: codec.RateControlCBR, GPU: -1},
	}, nil
}
