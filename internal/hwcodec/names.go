package hwcodec

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/smazurov/hwcodec/internal/encoders"
	"github.com/smazurov/hwcodec/internal/encoders/validation"
	"github.com/smazurov/hwcodec/internal/ffmpeg"
)

var registry = encoders.CreateValidatorRegistry()

// encoderCandidates returns the FFmpeg encoders that can serve a driver, API
// and format, in preference order.
func encoderCandidates(driver Driver, api API, format DataFormat) []string {
	p := format.prefix()
	if driver == DriverMFX {
		return []string{p + "_qsv"}
	}
	switch api {
	case APICUDA:
		return []string{p + "_nvenc"}
	case APIVAAPI:
		return []string{p + "_vaapi"}
	case APIQSV:
		return []string{p + "_qsv"}
	case APIDX11:
		return []string{p + "_nvenc", p + "_amf", p + "_qsv", p + "_mf"}
	}
	return nil
}

// compiledCache caches `ffmpeg -encoders` per binary.
type compiledCache struct {
	mu    sync.Mutex
	names map[string][]string
}

var compiled = &compiledCache{names: make(map[string][]string)}

// listEncoders is replaced in tests.
var listEncoders = func(ctx context.Context, bin string) ([]string, error) {
	list, err := encoders.GetFFmpegEncoders(ctx, bin)
	if err != nil {
		return nil, err
	}
	return list.Names(), nil
}

func (c *compiledCache) get(ctx context.Context, bin string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if names, ok := c.names[bin]; ok {
		return names, nil
	}
	names, err := listEncoders(ctx, bin)
	if err != nil {
		return nil, err
	}
	c.names[bin] = names
	return names, nil
}

func (c *compiledCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = make(map[string][]string)
}

// resolveEncoder picks the FFmpeg encoder for ctx. An explicit name wins;
// otherwise the first compiled candidate is used.
func resolveEncoder(ctx context.Context, ec *EncodeContext) (string, error) {
	if ec.Name != "" {
		return ec.Name, nil
	}
	candidates := encoderCandidates(ec.Driver, ec.API, ec.DataFormat)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s/%s/%s", ErrNoEncoder, ec.Driver, ec.API, ec.DataFormat)
	}
	names, err := compiled.get(ctx, FFmpegBinary())
	if err != nil {
		return "", fmt.Errorf("list encoders: %w", err)
	}
	for _, c := range candidates {
		if slices.Contains(names, c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: none of %v compiled into %s", ErrNoEncoder, candidates, FFmpegBinary())
}

// encoderSettings returns the device setup for an encoder; encoders without
// a vendor profile run with none.
func encoderSettings(name string, luid int64) *validation.EncoderSettings {
	if registry.FindValidator(name) == nil {
		return &validation.EncoderSettings{GPU: -1}
	}
	settings, err := registry.GetProductionSettings(name, luid)
	if err != nil {
		return &validation.EncoderSettings{GPU: -1}
	}
	return settings
}

// decodeParams maps a decode context onto FFmpeg hwaccel flags.
func decodeParams(dc *DecodeContext) *ffmpeg.DecodeParams {
	p := &ffmpeg.DecodeParams{
		Binary:      FFmpegBinary(),
		InputFormat: dc.DataFormat.prefix(),
	}
	if dc.Driver == DriverMFX {
		p.HWAccel = "qsv"
		p.HWAccelDevice = validation.RenderNode(dc.LUID)
		p.Decoder = dc.DataFormat.prefix() + "_qsv"
		return p
	}
	switch dc.API {
	case APIDX11:
		p.HWAccel = "d3d11va"
		p.HWAccelDevice = strconv.FormatInt(dc.LUID, 10)
	case APIVAAPI:
		p.HWAccel = "vaapi"
		p.HWAccelDevice = validation.RenderNode(dc.LUID)
	case APICUDA:
		p.HWAccel = "cuda"
		p.HWAccelDevice = strconv.FormatInt(dc.LUID, 10)
	case APIQSV:
		p.HWAccel = "qsv"
		p.HWAccelDevice = validation.RenderNode(dc.LUID)
	}
	return p
}
