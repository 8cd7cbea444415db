// Package hwcodec drives FFmpeg hardware encoders and decoders as
// subprocesses. An Encoder takes raw NV12 frames and returns Annex-B access
// units; a Decoder takes Annex-B packets and returns I420 frames.
package hwcodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlexxIT/go2rtc/pkg/core"

	"github.com/smazurov/hwcodec/internal/codec"
)

var (
	// ErrInvalidParam is returned for bad sizes, rates or enum values.
	ErrInvalidParam = codec.ErrInvalidParam
	// ErrNoEncoder is returned when no FFmpeg encoder serves a driver/API/format.
	ErrNoEncoder = errors.New("no suitable encoder")
	// ErrClosed is returned by calls on a closed encoder or decoder.
	ErrClosed = errors.New("codec closed")
	// ErrFrameSize is returned when a raw frame does not match the configured size.
	ErrFrameSize = errors.New("frame size mismatch")
)

// Driver is a backend family.
type Driver int32

// Drivers.
const (
	DriverFFmpegVRAM Driver = iota
	DriverMFX
)

func (d Driver) String() string {
	switch d {
	case DriverFFmpegVRAM:
		return "ffmpeg_vram"
	case DriverMFX:
		return "mfx"
	}
	return fmt.Sprintf("driver(%d)", int32(d))
}

// ParseDriver converts a driver name to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(s) {
	case "ffmpeg_vram", "ffmpeg", "":
		return DriverFFmpegVRAM, nil
	case "mfx", "vpl":
		return DriverMFX, nil
	}
	return 0, fmt.Errorf("%w: unknown driver %q", ErrInvalidParam, s)
}

// API selects the hardware API a codec runs on.
type API int32

// APIs. The values are part of the C surface.
const (
	APIDX11 API = iota
	APIVAAPI
	APICUDA
	APIQSV
)

func (a API) String() string {
	switch a {
	case APIDX11:
		return "dx11"
	case APIVAAPI:
		return "vaapi"
	case APICUDA:
		return "cuda"
	case APIQSV:
		return "qsv"
	}
	return fmt.Sprintf("api(%d)", int32(a))
}

// ParseAPI converts an API name to an API.
func ParseAPI(s string) (API, error) {
	switch strings.ToLower(s) {
	case "dx11", "d3d11", "d3d11va":
		return APIDX11, nil
	case "vaapi":
		return APIVAAPI, nil
	case "cuda", "nvenc":
		return APICUDA, nil
	case "qsv":
		return APIQSV, nil
	}
	return 0, fmt.Errorf("%w: unknown api %q", ErrInvalidParam, s)
}

// Valid reports whether a is a known API.
func (a API) Valid() bool {
	return a >= APIDX11 && a <= APIQSV
}

// DataFormat is the coded bitstream format.
type DataFormat int32

// Data formats. The values are part of the C surface.
const (
	H264 DataFormat = iota
	H265
)

func (f DataFormat) String() string {
	switch f {
	case H264:
		return "H264"
	case H265:
		return "H265"
	}
	return fmt.Sprintf("format(%d)", int32(f))
}

// ParseDataFormat converts a format name to a DataFormat.
func ParseDataFormat(s string) (DataFormat, error) {
	switch strings.ToLower(s) {
	case "h264", "avc":
		return H264, nil
	case "h265", "hevc":
		return H265, nil
	}
	return 0, fmt.Errorf("%w: unknown data format %q", ErrInvalidParam, s)
}

// Valid reports whether f is a known format.
func (f DataFormat) Valid() bool {
	return f == H264 || f == H265
}

// CodecName returns the go2rtc codec name for RTP signalling.
func (f DataFormat) CodecName() string {
	if f == H265 {
		return core.CodecH265
	}
	return core.CodecH264
}

// prefix is the FFmpeg codec name prefix and elementary stream format.
func (f DataFormat) prefix() string {
	if f == H265 {
		return "hevc"
	}
	return "h264"
}

// AdapterDesc identifies a working codec on one adapter.
type AdapterDesc struct {
	LUID int64  `json:"luid" example:"0" doc:"Adapter identifier"`
	Name string `json:"name" example:"h264_vaapi" doc:"FFmpeg codec name"`
}

// EncodeContext configures an encoder.
type EncodeContext struct {
	Driver     Driver
	Name       string // FFmpeg encoder; resolved from Driver/API/DataFormat when empty
	LUID       int64
	API        API
	DataFormat DataFormat
	Width      int
	Height     int
	Kbs        int
	FPS        int
	GOP        int
	Tuning     *codec.Tuning // nil selects medium quality CBR
}

func (c *EncodeContext) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidParam, c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: framerate %d", ErrInvalidParam, c.FPS)
	}
	if c.Kbs < 0 {
		return fmt.Errorf("%w: bitrate %d", ErrInvalidParam, c.Kbs)
	}
	if !c.DataFormat.Valid() {
		return fmt.Errorf("%w: data format %d", ErrInvalidParam, c.DataFormat)
	}
	if !c.API.Valid() {
		return fmt.Errorf("%w: api %d", ErrInvalidParam, c.API)
	}
	return nil
}

// DecodeContext configures a decoder.
type DecodeContext struct {
	Driver     Driver
	LUID       int64
	API        API
	DataFormat DataFormat
}

func (c *DecodeContext) validate() error {
	if !c.DataFormat.Valid() {
		return fmt.Errorf("%w: data format %d", ErrInvalidParam, c.DataFormat)
	}
	if !c.API.Valid() {
		return fmt.Errorf("%w: api %d", ErrInvalidParam, c.API)
	}
	return nil
}

// EncodeFrame is one encoded access unit.
type EncodeFrame struct {
	Data []byte
	Key  bool
	PTS  int64 // milliseconds, as passed to Encode
}

// DecodeFrame is one decoded picture in planar I420 layout.
type DecodeFrame struct {
	Data   []byte
	Width  int
	Height int
}

// NV12FrameSize returns the byte size of an NV12 frame.
func NV12FrameSize(width, height int) int {
	return width*height + 2*((width+1)/2)*((height+1)/2)
}
