package encoders

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const sampleEncoders = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D h264_vaapi           H.264/AVC (VAAPI) (codec h264)
 V....D hevc_qsv             HEVC (Intel Quick Sync Video acceleration) (codec hevc)
 A....D aac                  AAC (Advanced Audio Coding)
 S..... srt                  SubRip subtitle
`

func TestParseEncoderOutput(t *testing.T) {
	list, err := parseEncoderOutput(sampleEncoders)
	if err != nil {
		t.Fatal(err)
	}

	if len(list.VideoEncoders) != 4 {
		t.Fatalf("got %d video encoders, want 4", len(list.VideoEncoders))
	}
	if len(list.AudioEncoders) != 1 || len(list.SubtitleEncoders) != 1 {
		t.Errorf("audio=%d subtitle=%d", len(list.AudioEncoders), len(list.SubtitleEncoders))
	}

	hw := map[string]bool{}
	for _, e := range list.VideoEncoders {
		hw[e.Name] = e.HWAccel
	}
	want := map[string]bool{"libx264": false, "h264_nvenc": true, "h264_vaapi": true, "hevc_qsv": true}
	for name, w := range want {
		if hw[name] != w {
			t.Errorf("%s hwaccel = %v, want %v", name, hw[name], w)
		}
	}

	// legend lines must not be parsed as encoders
	for _, e := range list.Names() {
		if e == "=" || strings.Contains(e, "Video") {
			t.Errorf("legend parsed as encoder: %q", e)
		}
	}
}

func TestFilterEncoders(t *testing.T) {
	list, err := parseEncoderOutput(sampleEncoders)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter EncoderFilter
		want   []string
	}{
		{"hwaccel", EncoderFilter{Hwaccel: true}, []string{"h264_nvenc", "h264_vaapi", "hevc_qsv"}},
		{"search description", EncoderFilter{Search: "quick sync"}, []string{"hevc_qsv"}},
		{"audio type", EncoderFilter{Type: "A"}, []string{"aac"}},
		{"no match", EncoderFilter{Search: "vp9"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterEncoders(list, tt.filter).Names()
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"ffmpeg version 7.1.1 Copyright (c) 2000-2025\nbuilt with gcc", "7.1.1"},
		{"ffmpeg version n6.0-ubuntu Copyright", "n6.0-ubuntu"},
		{"garbage", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := parseVersion(tt.output); got != tt.want {
			t.Errorf("parseVersion(%q) = %q, want %q", tt.output, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	var probed []string
	probe := func(_ context.Context, name string, luid int64) error {
		if luid != 2 {
			t.Errorf("probe luid = %d, want 2", luid)
		}
		probed = append(probed, name)
		if name == "h264_vaapi" {
			return errors.New("no device")
		}
		return nil
	}

	v := NewValidator("", probe)
	v.SetLUID(2)
	results := v.validate(context.Background(), []string{"libx264", "h264_vaapi", "hevc_vaapi", "h264_nvenc"})

	if !slices.Equal(probed, []string{"h264_nvenc", "h264_vaapi", "hevc_vaapi"}) {
		t.Errorf("probed %v", probed)
	}
	if !slices.Equal(results.H264.Working, []string{"h264_nvenc"}) {
		t.Errorf("h264 working = %v", results.H264.Working)
	}
	if !slices.Equal(results.H264.Failed, []string{"h264_vaapi"}) {
		t.Errorf("h264 failed = %v", results.H264.Failed)
	}
	if !slices.Equal(results.H265.Working, []string{"hevc_vaapi"}) {
		t.Errorf("h265 working = %v", results.H265.Working)
	}
	if best, ok := results.H264.Best(); !ok || best != "h264_nvenc" {
		t.Errorf("Best() = %q, %v", best, ok)
	}
	if results.LUID != 2 {
		t.Errorf("LUID = %d", results.LUID)
	}
}

func TestValidateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	v := NewValidator("", func(context.Context, string, int64) error {
		called = true
		return nil
	})
	v.validate(ctx, []string{"h264_nvenc"})
	if called {
		t.Error("probe should not run after cancellation")
	}
}

func TestSaveLoadValidationResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "validation.toml")
	results := &ValidationResults{
		Timestamp:      "2025-01-01T00:00:00Z",
		FFmpegVersion:  "7.1",
		TestResolution: "1280x720",
		H264:           CodecValidation{Working: []string{"h264_qsv"}, Failed: []string{}},
		H265:           CodecValidation{Working: []string{}, Failed: []string{"hevc_qsv"}},
	}

	if err := SaveValidationResults(path, results); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadValidationResults(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.FFmpegVersion != "7.1" || !slices.Equal(loaded.H264.Working, []string{"h264_qsv"}) ||
		!slices.Equal(loaded.H265.Failed, []string{"hevc_qsv"}) {
		t.Errorf("loaded %+v", loaded)
	}

	if _, err := LoadValidationResults(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintValidationSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintValidationSummary(&buf, &ValidationResults{
		H264: CodecValidation{Working: []string{"h264_nvenc"}},
		H265: CodecValidation{Failed: []string{"hevc_amf"}},
	})

	out := buf.String()
	for _, want := range []string{"H.264 encoders working: 1", "Working: h264_nvenc", "H.265: hevc_amf"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
