package ffmpeg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smazurov/hwcodec/internal/codec"
)

// DefaultBinary is the ffmpeg executable looked up in PATH.
const DefaultBinary = "ffmpeg"

// Base returns the ffmpeg invocation with standard flags.
func Base(binary string) string {
	if binary == "" {
		binary = DefaultBinary
	}
	return binary + " -hide_banner -loglevel level+warning"
}

// EncodeParams describes one raw-frames-in, elementary-stream-out encoder
// process. Frames arrive on stdin and access units leave on stdout.
type EncodeParams struct {
	Binary       string
	GlobalArgs   []string // hardware device setup (-vaapi_device, -init_hw_device)
	PixelFormat  string   // input pixel format, nv12 by default
	Encoder      string   // h264_nvenc, hevc_qsv, ...
	Context      *codec.Context
	Options      *Args  // vendor private options
	VideoFilters string // format=nv12,hwupload
	ProgressURL  string // unix:// socket for -progress reports
}

// DecodeParams describes one elementary-stream-in, Y4M-out decoder process.
type DecodeParams struct {
	Binary        string
	GlobalArgs    []string
	HWAccel       string // cuda, d3d11va, qsv, vaapi
	HWAccelDevice string
	Decoder       string // explicit decoder (h264_qsv) or empty for FFmpeg's choice
	InputFormat   string // h264 or hevc
}

// OutputFormat returns the raw elementary stream muxer for an encoder name.
func OutputFormat(encoder string) (string, error) {
	switch {
	case strings.HasPrefix(encoder, "h264"), encoder == "libx264", encoder == "libopenh264":
		return "h264", nil
	case strings.HasPrefix(encoder, "hevc"), encoder == "libx265":
		return "hevc", nil
	}
	return "", fmt.Errorf("no elementary stream format for encoder %q", encoder)
}

// BuildEncodeCommand builds the encoder process command line.
func BuildEncodeCommand(p *EncodeParams) (string, error) {
	if p.Encoder == "" {
		return "", errors.New("encoder is required")
	}
	if p.Context == nil || p.Context.Width <= 0 || p.Context.Height <= 0 {
		return "", errors.New("codec context with frame size is required")
	}
	format, err := OutputFormat(p.Encoder)
	if err != nil {
		return "", err
	}

	pixFmt := p.PixelFormat
	if pixFmt == "" {
		pixFmt = "nv12"
	}

	var cmd strings.Builder
	cmd.WriteString(Base(p.Binary))
	cmd.WriteString(" -fflags nobuffer")

	for _, arg := range p.GlobalArgs {
		cmd.WriteString(" " + arg)
	}

	fmt.Fprintf(&cmd, " -f rawvideo -pix_fmt %s -s %dx%d", pixFmt, p.Context.Width, p.Context.Height)
	if fr := p.Context.Framerate; fr.Num > 0 && fr.Den > 0 {
		fmt.Fprintf(&cmd, " -framerate %d/%d", fr.Num, fr.Den)
	}
	cmd.WriteString(" -i pipe:0")

	if p.VideoFilters != "" {
		cmd.WriteString(" -vf " + p.VideoFilters)
	}

	cmd.WriteString(" -c:v " + p.Encoder)
	cmd.WriteString(" " + strings.Join(ContextArgs(p.Context), " "))
	if p.Options != nil && p.Options.Len() > 0 {
		cmd.WriteString(" " + p.Options.String())
	}

	// An AUD in front of every access unit lets the reader cut the stream
	// without waiting for the next slice header.
	fmt.Fprintf(&cmd, " -bsf:v %s_metadata=aud=insert", format)
	if p.ProgressURL != "" {
		cmd.WriteString(" -progress " + p.ProgressURL + " -stats_period 1")
	}
	cmd.WriteString(" -flush_packets 1 -f " + format + " pipe:1")

	return cmd.String(), nil
}

// BuildDecodeCommand builds the decoder process command line.
func BuildDecodeCommand(p *DecodeParams) (string, error) {
	if p.InputFormat != "h264" && p.InputFormat != "hevc" {
		return "", fmt.Errorf("unsupported input format %q", p.InputFormat)
	}

	var cmd strings.Builder
	cmd.WriteString(Base(p.Binary))
	cmd.WriteString(" -fflags nobuffer -flags low_delay -probesize 32 -analyzeduration 0")

	for _, arg := range p.GlobalArgs {
		cmd.WriteString(" " + arg)
	}
	if p.HWAccel != "" {
		cmd.WriteString(" -hwaccel " + p.HWAccel)
		if p.HWAccelDevice != "" {
			cmd.WriteString(" -hwaccel_device " + p.HWAccelDevice)
		}
	}
	if p.Decoder != "" {
		cmd.WriteString(" -c:v " + p.Decoder)
	}

	cmd.WriteString(" -f " + p.InputFormat + " -i pipe:0")
	cmd.WriteString(" -pix_fmt yuv420p -f yuv4mpegpipe pipe:1")

	return cmd.String(), nil
}

// BuildSampleCommand builds a command that encodes a short test pattern with
// a software encoder and writes the elementary stream to stdout.
func BuildSampleCommand(binary, encoder string, width, height, frames int) (string, error) {
	format, err := OutputFormat(encoder)
	if err != nil {
		return "", err
	}
	if width <= 0 || height <= 0 || frames <= 0 {
		return "", fmt.Errorf("invalid sample %dx%d with %d frames", width, height, frames)
	}
	return fmt.Sprintf("%s -f lavfi -i testsrc2=size=%dx%d:rate=30 -frames:v %d -pix_fmt yuv420p -c:v %s -bf 0 -f %s pipe:1",
		Base(binary), width, height, frames, encoder, format), nil
}

// BuildEncodersListCommand returns the command listing compiled encoders.
func BuildEncodersListCommand(binary string) string {
	return Base(binary) + " -encoders"
}

// BuildDecodersListCommand returns the command listing compiled decoders.
func BuildDecodersListCommand(binary string) string {
	return Base(binary) + " -decoders"
}

// BuildVersionCommand returns the command printing the ffmpeg version.
func BuildVersionCommand(binary string) string {
	if binary == "" {
		binary = DefaultBinary
	}
	return binary + " -version"
}

// IsHardwareEncoder reports whether the encoder name carries a vendor token.
func IsHardwareEncoder(name string) bool {
	for _, vendor := range codec.Vendors {
		if strings.Contains(name, vendor) {
			return true
		}
	}
	return false
}
