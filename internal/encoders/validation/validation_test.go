package validation

import (
	"slices"
	"strings"
	"testing"
)

func TestRenderNode(t *testing.T) {
	if got := RenderNode(0); got != "/dev/dri/renderD128" {
		t.Errorf("RenderNode(0) = %q", got)
	}
	if got := RenderNode(2); got != "/dev/dri/renderD130" {
		t.Errorf("RenderNode(2) = %q", got)
	}
}

func TestFindValidator(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		encoder string
		want    string
	}{
		{"h264_nvenc", "NVIDIA"},
		{"hevc_amf", "AMD"},
		{"h264_qsv", "Intel"},
		{"hevc_vaapi", "VAAPI"},
		{"h264_mf", "Media Foundation"},
	}

	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			v := r.FindValidator(tt.encoder)
			if v == nil {
				t.Fatal("no validator found")
			}
			if !strings.Contains(v.GetDescription(), tt.want) {
				t.Errorf("description %q does not mention %q", v.GetDescription(), tt.want)
			}
		})
	}

	if r.FindValidator("libx264") != nil {
		t.Error("software encoder should have no validator")
	}
}

func TestProductionSettings(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		encoder    string
		luid       int64
		wantGlobal []string
		wantFilter string
		wantGPU    int
	}{
		{"h264_nvenc", 1, nil, "", 1},
		{"hevc_amf", 1, nil, "", -1},
		{"h264_qsv", 1, []string{"-init_hw_device", "qsv=hw:/dev/dri/renderD129", "-filter_hw_device", "hw"}, "hwupload=extra_hw_frames=64,format=qsv", -1},
		{"hevc_vaapi", 0, []string{"-vaapi_device", "/dev/dri/renderD128"}, "format=nv12,hwupload", -1},
		{"h264_mf", 0, nil, "", -1},
	}

	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			s, err := r.GetProductionSettings(tt.encoder, tt.luid)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(s.GlobalArgs, tt.wantGlobal) {
				t.Errorf("GlobalArgs = %v, want %v", s.GlobalArgs, tt.wantGlobal)
			}
			if s.VideoFilters != tt.wantFilter {
				t.Errorf("VideoFilters = %q, want %q", s.VideoFilters, tt.wantFilter)
			}
			if s.GPU != tt.wantGPU {
				t.Errorf("GPU = %d, want %d", s.GPU, tt.wantGPU)
			}
		})
	}

	if _, err := r.GetProductionSettings("libx264", 0); err == nil {
		t.Error("expected error for unknown encoder")
	}
	if _, err := NewVaapiValidator().GetProductionSettings("h264_nvenc", 0); err == nil {
		t.Error("expected error for foreign encoder")
	}
}

func TestCompiledEncoders(t *testing.T) {
	r := DefaultRegistry()
	compiled := []string{"h264_vaapi", "hevc_nvenc", "libx264"}

	available := r.GetAvailableValidators(compiled)
	if len(available) != 2 {
		t.Fatalf("got %d available validators, want 2", len(available))
	}
	if got := r.GetCompiledEncoders(available[0], compiled); !slices.Equal(got, []string{"hevc_nvenc"}) {
		t.Errorf("nvenc compiled = %v", got)
	}
	if got := r.GetCompiledEncoders(available[1], compiled); !slices.Equal(got, []string{"h264_vaapi"}) {
		t.Errorf("vaapi compiled = %v", got)
	}
}

func TestEncoderNames(t *testing.T) {
	want := []string{"hevc_nvenc", "hevc_amf", "hevc_qsv", "hevc_vaapi", "hevc_mf"}
	if got := DefaultRegistry().EncoderNames("hevc"); !slices.Equal(got, want) {
		t.Errorf("EncoderNames(hevc) = %v, want %v", got, want)
	}
}
