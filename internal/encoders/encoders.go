// Package encoders lists the encoders compiled into FFmpeg and validates the
// hardware ones with a real test encode.
package encoders

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/smazurov/hwcodec/internal/ffmpeg"
	"github.com/smazurov/hwcodec/internal/process"
)

// EncoderType represents the type of encoder (video, audio, subtitle)
type EncoderType string

const (
	VideoEncoder    EncoderType = "V"
	AudioEncoder    EncoderType = "A"
	SubtitleEncoder EncoderType = "S"
	Unknown         EncoderType = "?"
)

// Encoder represents an FFmpeg encoder
type Encoder struct {
	Type        EncoderType `json:"type" doc:"Encoder type (V, A, S)"`
	Name        string      `json:"name" example:"h264_vaapi" doc:"FFmpeg encoder name"`
	Description string      `json:"description" doc:"FFmpeg description"`
	HWAccel     bool        `json:"hwaccel" doc:"Hardware accelerated"`
}

// EncoderList holds a categorized list of encoders
type EncoderList struct {
	VideoEncoders    []Encoder `json:"video_encoders"`
	AudioEncoders    []Encoder `json:"audio_encoders"`
	SubtitleEncoders []Encoder `json:"subtitle_encoders"`
	OtherEncoders    []Encoder `json:"other_encoders"`
}

// Names returns the names of every encoder in the list.
func (l *EncoderList) Names() []string {
	var names []string
	for _, group := range [][]Encoder{l.VideoEncoders, l.AudioEncoders, l.SubtitleEncoders, l.OtherEncoders} {
		for _, e := range group {
			names = append(names, e.Name)
		}
	}
	return names
}

// EncoderFilter represents filter options for encoders
type EncoderFilter struct {
	Type    string `json:"type"`    // Filter by encoder type (V, A, S)
	Search  string `json:"search"`  // Search term for name or description
	Hwaccel bool   `json:"hwaccel"` // Filter for hardware accelerated encoders
}

var (
	encoderRegex = regexp.MustCompile(`^\s*([VAS\.][A-Z\.]{5})\s+(\w+)\s+(.+)$`)
	hwaccelRegex = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|_mf|cuda|d3d11va)`)
)

// GetFFmpegEncoders retrieves all encoders compiled into the given ffmpeg binary.
func GetFFmpegEncoders(ctx context.Context, binary string) (*EncoderList, error) {
	output, err := process.Output(ctx, ffmpeg.BuildEncodersListCommand(binary))
	if err != nil {
		return nil, fmt.Errorf("failed to execute encoders command: %w", err)
	}
	return parseEncoderOutput(string(output))
}

// parseEncoderOutput processes the output of ffmpeg -encoders command
func parseEncoderOutput(output string) (*EncoderList, error) {
	result := &EncoderList{
		VideoEncoders:    []Encoder{},
		AudioEncoders:    []Encoder{},
		SubtitleEncoders: []Encoder{},
		OtherEncoders:    []Encoder{},
	}

	scanner := bufio.NewScanner(strings.NewReader(output))

	// Skip the legend until the encoder table starts
	encodersStarted := false

	for scanner.Scan() {
		line := scanner.Text()

		if !encodersStarted {
			if strings.Contains(line, "------") || strings.Contains(line, "Encoders:") {
				encodersStarted = true
			}
			continue
		}

		matches := encoderRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}
		typeFlags, name, description := matches[1], matches[2], matches[3]

		var encoderType EncoderType
		switch {
		case strings.HasPrefix(typeFlags, "V"):
			encoderType = VideoEncoder
		case strings.HasPrefix(typeFlags, "A"):
			encoderType = AudioEncoder
		case strings.HasPrefix(typeFlags, "S"):
			encoderType = SubtitleEncoder
		default:
			encoderType = Unknown
		}

		encoder := Encoder{
			Type:        encoderType,
			Name:        name,
			Description: description,
			HWAccel:     hwaccelRegex.MatchString(name),
		}

		switch encoderType {
		case VideoEncoder:
			result.VideoEncoders = append(result.VideoEncoders, encoder)
		case AudioEncoder:
			result.AudioEncoders = append(result.AudioEncoders, encoder)
		case SubtitleEncoder:
			result.SubtitleEncoders = append(result.SubtitleEncoders, encoder)
		default:
			result.OtherEncoders = append(result.OtherEncoders, encoder)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading output: %w", err)
	}

	return result, nil
}

// FilterEncoders applies filters to a list of encoders
func FilterEncoders(encoders *EncoderList, filter EncoderFilter) *EncoderList {
	matchesFilter := func(encoder Encoder) bool {
		if filter.Type != "" && string(encoder.Type) != filter.Type {
			return false
		}
		if filter.Hwaccel && !encoder.HWAccel {
			return false
		}
		if filter.Search != "" {
			searchTerm := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(encoder.Name), searchTerm) &&
				!strings.Contains(strings.ToLower(encoder.Description), searchTerm) {
				return false
			}
		}
		return true
	}

	filterGroup := func(group []Encoder) []Encoder {
		out := []Encoder{}
		for _, encoder := range group {
			if matchesFilter(encoder) {
				out = append(out, encoder)
			}
		}
		return out
	}

	return &EncoderList{
		VideoEncoders:    filterGroup(encoders.VideoEncoders),
		AudioEncoders:    filterGroup(encoders.AudioEncoders),
		SubtitleEncoders: filterGroup(encoders.SubtitleEncoders),
		OtherEncoders:    filterGroup(encoders.OtherEncoders),
	}
}

// GetFFmpegVersion returns the version token of the ffmpeg binary, or "unknown".
func GetFFmpegVersion(ctx context.Context, binary string) string {
	output, err := process.Output(ctx, ffmpeg.BuildVersionCommand(binary))
	if err != nil {
		return "unknown"
	}
	return parseVersion(string(output))
}

// parseVersion extracts the version from a line like "ffmpeg version 7.1.1 Copyright..."
func parseVersion(output string) string {
	line, _, _ := strings.Cut(output, "\n")
	parts := strings.Fields(line)
	if len(parts) >= 3 && parts[1] == "version" {
		return parts[2]
	}
	return "unknown"
}
