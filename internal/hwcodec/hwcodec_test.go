package hwcodec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/hwcodec/internal/codec"
	"github.com/smazurov/hwcodec/internal/events"
	"github.com/smazurov/hwcodec/internal/ffmpeg"
)

const (
	testWidth  = 4
	testHeight = 4
)

// testFrame builds an NV12-sized buffer that is itself one H.264 access unit,
// so a cat subprocess turns it back into exactly one unit.
func testFrame(key bool) []byte {
	slice := []byte{0, 0, 0, 1, 0x41, 0x9A}
	if key {
		slice = []byte{0, 0, 0, 1, 0x65, 0x88}
	}
	frame := append([]byte{0, 0, 0, 1, 0x09, 0xF0}, slice...)
	return append(frame, bytes.Repeat([]byte{0xAA}, NV12FrameSize(testWidth, testHeight)-len(frame))...)
}

type capturedParams struct {
	mu     sync.Mutex
	encode []*ffmpeg.EncodeParams
	decode []*ffmpeg.DecodeParams
}

func (c *capturedParams) encodes() []*ffmpeg.EncodeParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.encode)
}

// useCat replaces FFmpeg with cat and records the parameters each command
// was built from.
func useCat(t *testing.T) *capturedParams {
	t.Helper()
	c := &capturedParams{}
	origEnc, origDec := buildEncodeCommand, buildDecodeCommand
	buildEncodeCommand = func(p *ffmpeg.EncodeParams) (string, error) {
		c.mu.Lock()
		c.encode = append(c.encode, p)
		c.mu.Unlock()
		return "cat", nil
	}
	buildDecodeCommand = func(p *ffmpeg.DecodeParams) (string, error) {
		c.mu.Lock()
		c.decode = append(c.decode, p)
		c.mu.Unlock()
		return "cat", nil
	}
	t.Cleanup(func() {
		buildEncodeCommand, buildDecodeCommand = origEnc, origDec
	})
	return c
}

func testEncodeContext() EncodeContext {
	return EncodeContext{
		Name:       "h264_vaapi",
		API:        APIVAAPI,
		DataFormat: H264,
		Width:      testWidth,
		Height:     testHeight,
		Kbs:        1000,
		FPS:        30,
		GOP:        30,
	}
}

type frameSink struct {
	mu     sync.Mutex
	frames []EncodeFrame
}

func (s *frameSink) add(f EncodeFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *frameSink) get() []EncodeFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.frames)
}

func TestEncoderPassthrough(t *testing.T) {
	useCat(t)

	enc, err := NewEncoder(testEncodeContext())
	if err != nil {
		t.Fatal(err)
	}

	sink := &frameSink{}
	frames := [][]byte{testFrame(true), testFrame(false), testFrame(false)}
	for i, f := range frames {
		if err := enc.Encode(f, int64(i*33), sink.add); err != nil {
			t.Fatalf("Encode(%d): %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	got := sink.get()
	if len(got) != len(frames) {
		t.Fatalf("got %d access units, want %d", len(got), len(frames))
	}
	for i, f := range got {
		if f.PTS != int64(i*33) {
			t.Errorf("unit %d PTS = %d, want %d", i, f.PTS, i*33)
		}
		if f.Key != (i == 0) {
			t.Errorf("unit %d key = %v", i, f.Key)
		}
		if !bytes.Equal(f.Data, frames[i]) {
			t.Errorf("unit %d data mismatch", i)
		}
	}
}

func TestEncoderErrors(t *testing.T) {
	useCat(t)

	enc, err := NewEncoder(testEncodeContext())
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.Encode([]byte{1, 2, 3}, 0, nil); !errors.Is(err, ErrFrameSize) {
		t.Errorf("short frame error = %v, want ErrFrameSize", err)
	}
	if err := enc.SetFramerate(0); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("SetFramerate(0) error = %v, want ErrInvalidParam", err)
	}
	if err := enc.SetBitrate(-1); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("SetBitrate(-1) error = %v, want ErrInvalidParam", err)
	}

	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() = %v, want ErrClosed", err)
	}
	if err := enc.Encode(testFrame(true), 0, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Encode after Close = %v, want ErrClosed", err)
	}
	if err := enc.SetBitrate(2000); !errors.Is(err, ErrClosed) {
		t.Errorf("SetBitrate after Close = %v, want ErrClosed", err)
	}
}

func TestNewEncoderInvalidContext(t *testing.T) {
	useCat(t)

	tests := []struct {
		name   string
		modify func(*EncodeContext)
	}{
		{"zero width", func(c *EncodeContext) { c.Width = 0 }},
		{"zero fps", func(c *EncodeContext) { c.FPS = 0 }},
		{"negative bitrate", func(c *EncodeContext) { c.Kbs = -1 }},
		{"bad format", func(c *EncodeContext) { c.DataFormat = 7 }},
		{"bad api", func(c *EncodeContext) { c.API = 9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := testEncodeContext()
			tt.modify(&ec)
			if _, err := NewEncoder(ec); !errors.Is(err, ErrInvalidParam) {
				t.Errorf("error = %v, want ErrInvalidParam", err)
			}
		})
	}
}

func TestEncoderReconfigure(t *testing.T) {
	captured := useCat(t)

	enc, err := NewEncoder(testEncodeContext())
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	sink := &frameSink{}
	if err := enc.Encode(testFrame(true), 0, sink.add); err != nil {
		t.Fatal(err)
	}

	if err := enc.SetBitrate(2000); err != nil {
		t.Fatal(err)
	}
	// restart flushes the previous subprocess
	if n := len(sink.get()); n != 1 {
		t.Fatalf("got %d units after restart, want 1", n)
	}

	if err := enc.SetFramerate(60); err != nil {
		t.Fatal(err)
	}
	if err := enc.SetFramerate(60); err != nil {
		t.Fatal(err)
	}

	if err := enc.Encode(testFrame(true), 100, sink.add); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	got := sink.get()
	if len(got) != 2 || got[1].PTS != 100 {
		t.Fatalf("unexpected units after reconfigure: %+v", got)
	}

	params := captured.encodes()
	if len(params) != 3 {
		t.Fatalf("built %d commands, want 3 (unchanged framerate must not restart)", len(params))
	}
	if params[0].Context.BitRate != 1_000_000 || params[1].Context.BitRate != 2_000_000 {
		t.Errorf("bitrates = %d, %d", params[0].Context.BitRate, params[1].Context.BitRate)
	}
	if params[2].Context.Framerate != (codec.Rational{Num: 60, Den: 1}) {
		t.Errorf("framerate = %+v", params[2].Context.Framerate)
	}
	if enc.Context().FPS != 60 || enc.Context().Kbs != 2000 {
		t.Errorf("context = %+v", enc.Context())
	}
}

func TestEncoderCommandSettings(t *testing.T) {
	captured := useCat(t)

	ec := testEncodeContext()
	ec.LUID = 1
	enc, err := NewEncoder(ec)
	if err != nil {
		t.Fatal(err)
	}
	enc.Close()

	p := captured.encodes()[0]
	if p.Encoder != "h264_vaapi" {
		t.Errorf("Encoder = %q", p.Encoder)
	}
	if !slices.Equal(p.GlobalArgs, []string{"-vaapi_device", "/dev/dri/renderD129"}) {
		t.Errorf("GlobalArgs = %v", p.GlobalArgs)
	}
	if p.VideoFilters != "format=nv12,hwupload" {
		t.Errorf("VideoFilters = %q", p.VideoFilters)
	}
	if v, ok := p.Options.Get("async_depth"); !ok || v != "1" {
		t.Errorf("async_depth = %q, %v", v, ok)
	}
	if p.Context.Profile != codec.ProfileH264High {
		t.Errorf("Profile = %d", p.Context.Profile)
	}
}

func TestEncoderNvencGPU(t *testing.T) {
	captured := useCat(t)

	ec := testEncodeContext()
	ec.Name = "hevc_nvenc"
	ec.DataFormat = H265
	ec.LUID = 2
	ec.Tuning = &codec.Tuning{Quality: codec.QualityLow, RateControl: codec.RateControlVBR}
	enc, err := NewEncoder(ec)
	if err != nil {
		t.Fatal(err)
	}
	enc.Close()

	opts := captured.encodes()[0].Options
	want := map[string]string{"gpu": "2", "preset": "p1", "rc": "vbr", "delay": "0"}
	for k, w := range want {
		if v, _ := opts.Get(k); v != w {
			t.Errorf("%s = %q, want %q", k, v, w)
		}
	}
}

type failingSetter struct{}

func (failingSetter) Set(string, string) error { return codec.ErrOptionRejected }
func (failingSetter) SetInt(string, int64) error { return codec.ErrOptionRejected }

func TestTuneFailurePublishesEvent(t *testing.T) {
	b := events.New()
	SetEventBus(b)
	t.Cleanup(func() { SetEventBus(nil) })

	received := make(chan events.TuningFailedEvent, 1)
	unsub := b.Subscribe(func(e events.TuningFailedEvent) { received <- e })
	defer unsub()

	err := tune(failingSetter{}, "h264_amf", defaultTuning)
	if !errors.Is(err, codec.ErrOptionRejected) {
		t.Fatalf("error = %v, want ErrOptionRejected", err)
	}

	select {
	case e := <-received:
		if e.Encoder != "h264_amf" || e.Vendor != "amf" || e.Function != "SetLatencyFree" || e.Option != "query_timeout" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no TuningFailedEvent")
	}
}

func TestEncoderLifecycleEvents(t *testing.T) {
	useCat(t)
	b := events.New()
	SetEventBus(b)
	t.Cleanup(func() { SetEventBus(nil) })

	created := make(chan events.EncoderCreatedEvent, 1)
	closed := make(chan events.EncoderClosedEvent, 1)
	defer b.Subscribe(func(e events.EncoderCreatedEvent) { created <- e })()
	defer b.Subscribe(func(e events.EncoderClosedEvent) { closed <- e })()

	enc, err := NewEncoder(testEncodeContext())
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(testFrame(true), 0, nil); err != nil {
		t.Fatal(err)
	}
	enc.Close()

	select {
	case e := <-created:
		if e.ID != enc.ID() || e.Encoder != "h264_vaapi" || e.Width != testWidth {
			t.Errorf("unexpected created event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no EncoderCreatedEvent")
	}
	select {
	case e := <-closed:
		if e.Frames != 1 || e.ExitCode != 0 {
			t.Errorf("unexpected closed event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no EncoderClosedEvent")
	}
}

func TestResolveEncoder(t *testing.T) {
	orig := listEncoders
	listEncoders = func(context.Context, string) ([]string, error) {
		return []string{"libx264", "h264_qsv", "hevc_amf", "h264_mf"}, nil
	}
	compiled.reset()
	t.Cleanup(func() {
		listEncoders = orig
		compiled.reset()
	})

	tests := []struct {
		name    string
		ctx     EncodeContext
		want    string
		wantErr error
	}{
		{"explicit name", EncodeContext{Name: "h264_vaapi", API: APICUDA}, "h264_vaapi", nil},
		{"mfx", EncodeContext{Driver: DriverMFX, DataFormat: H264}, "h264_qsv", nil},
		{"dx11 h264 skips missing nvenc and amf", EncodeContext{API: APIDX11, DataFormat: H264}, "h264_qsv", nil},
		{"dx11 hevc", EncodeContext{API: APIDX11, DataFormat: H265}, "hevc_amf", nil},
		{"cuda not compiled", EncodeContext{API: APICUDA, DataFormat: H264}, "", ErrNoEncoder},
		{"vaapi not compiled", EncodeContext{API: APIVAAPI, DataFormat: H265}, "", ErrNoEncoder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveEncoder(context.Background(), &tt.ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveEncoder() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name        string
		ctx         DecodeContext
		wantAccel   string
		wantDevice  string
		wantDecoder string
		wantFormat  string
	}{
		{"vaapi", DecodeContext{API: APIVAAPI, DataFormat: H264, LUID: 1}, "vaapi", "/dev/dri/renderD129", "", "h264"},
		{"cuda", DecodeContext{API: APICUDA, DataFormat: H265, LUID: 1}, "cuda", "1", "", "hevc"},
		{"dx11", DecodeContext{API: APIDX11, DataFormat: H264}, "d3d11va", "0", "", "h264"},
		{"qsv", DecodeContext{API: APIQSV, DataFormat: H264}, "qsv", "/dev/dri/renderD128", "", "h264"},
		{"mfx", DecodeContext{Driver: DriverMFX, API: APIQSV, DataFormat: H265}, "qsv", "/dev/dri/renderD128", "hevc_qsv", "hevc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := decodeParams(&tt.ctx)
			if p.HWAccel != tt.wantAccel || p.HWAccelDevice != tt.wantDevice || p.Decoder != tt.wantDecoder || p.InputFormat != tt.wantFormat {
				t.Errorf("decodeParams() = %+v", p)
			}
		})
	}
}

func y4mStream(frames int) []byte {
	var b bytes.Buffer
	b.WriteString("YUV4MPEG2 W4 H2 F30:1 Ip A1:1 C420jpeg\n")
	for i := range frames {
		b.WriteString("FRAME\n")
		b.Write(bytes.Repeat([]byte{byte(i)}, 12))
	}
	return b.Bytes()
}

func TestDecoderPassthrough(t *testing.T) {
	captured := useCat(t)

	dec, err := NewDecoder(DecodeContext{API: APIVAAPI, DataFormat: H264})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []DecodeFrame
	cb := func(f DecodeFrame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	}

	stream := y4mStream(2)
	if err := dec.Decode(stream[:20], cb); err != nil {
		t.Fatal(err)
	}
	if err := dec.Decode(stream[20:], cb); err != nil {
		t.Fatal(err)
	}
	if err := dec.Close(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	for i, f := range got {
		if f.Width != 4 || f.Height != 2 || len(f.Data) != 12 || f.Data[0] != byte(i) {
			t.Errorf("frame %d = %dx%d %d bytes", i, f.Width, f.Height, len(f.Data))
		}
	}

	if p := captured.decode[0]; p.HWAccel != "vaapi" || p.InputFormat != "h264" {
		t.Errorf("decode params = %+v", p)
	}
}

func TestDecoderErrors(t *testing.T) {
	useCat(t)

	if _, err := NewDecoder(DecodeContext{API: APIVAAPI, DataFormat: 5}); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("bad format error = %v", err)
	}

	dec, err := NewDecoder(DecodeContext{API: APIVAAPI, DataFormat: H265})
	if err != nil {
		t.Fatal(err)
	}
	if err := dec.Decode(nil, nil); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("empty packet error = %v", err)
	}
	dec.Close()
	if err := dec.Decode([]byte{0}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Decode after Close = %v, want ErrClosed", err)
	}
}

func TestAdapters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"renderD130", "renderD128", "card0", "renderDx"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	orig := renderNodeGlob
	renderNodeGlob = filepath.Join(dir, "renderD*")
	t.Cleanup(func() { renderNodeGlob = orig })

	if got := Adapters(); !slices.Equal(got, []int64{0, 2}) {
		t.Errorf("Adapters() = %v, want [0 2]", got)
	}
}

func TestTestEncode(t *testing.T) {
	useCat(t)
	orig := renderNodeGlob
	renderNodeGlob = filepath.Join(t.TempDir(), "renderD*")
	t.Cleanup(func() { renderNodeGlob = orig })

	ec := testEncodeContext()
	ec.Name = ""
	ec.API = APIDX11

	// cat echoes the black probe frame, which holds no start code, so every
	// candidate reports no output
	descs, err := TestEncode(context.Background(), 4, []int64{0, 1}, ec)
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 0 {
		t.Errorf("expected no working encoders, got %v", descs)
	}

	if _, err := TestEncode(context.Background(), 0, nil, ec); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("maxDescs 0 error = %v", err)
	}
}

func TestTestDecode(t *testing.T) {
	useCat(t)
	orig := renderNodeGlob
	dir := t.TempDir()
	for _, name := range []string{"renderD128", "renderD129", "renderD130"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	renderNodeGlob = filepath.Join(dir, "renderD*")
	t.Cleanup(func() { renderNodeGlob = orig })

	descs, err := TestDecode(context.Background(), 2, DecodeContext{API: APIVAAPI, DataFormat: H264}, y4mStream(1))
	if err != nil {
		t.Fatal(err)
	}
	want := []AdapterDesc{{LUID: 0, Name: "vaapi/h264"}, {LUID: 1, Name: "vaapi/h264"}}
	if !slices.Equal(descs, want) {
		t.Errorf("TestDecode() = %v, want %v", descs, want)
	}

	if _, err := TestDecode(context.Background(), 2, DecodeContext{DataFormat: H264}, nil); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("empty sample error = %v", err)
	}
}

func TestParseEnums(t *testing.T) {
	if d, err := ParseDriver("mfx"); err != nil || d != DriverMFX {
		t.Errorf("ParseDriver(mfx) = %v, %v", d, err)
	}
	if a, err := ParseAPI("VAAPI"); err != nil || a != APIVAAPI {
		t.Errorf("ParseAPI(VAAPI) = %v, %v", a, err)
	}
	if f, err := ParseDataFormat("hevc"); err != nil || f != H265 || f.CodecName() != "H265" {
		t.Errorf("ParseDataFormat(hevc) = %v, %v", f, err)
	}
	for _, s := range []string{"vp9", "av1"} {
		if _, err := ParseDataFormat(s); !errors.Is(err, ErrInvalidParam) {
			t.Errorf("ParseDataFormat(%q) error = %v", s, err)
		}
	}
	if !strings.HasPrefix(API(9).String(), "api(") {
		t.Errorf("unknown API String() = %q", API(9).String())
	}
}

func TestNV12FrameSize(t *testing.T) {
	tests := []struct{ w, h, want int }{
		{4, 4, 24},
		{1280, 720, 1382400},
		{3, 3, 17},
	}
	for _, tt := range tests {
		if got := NV12FrameSize(tt.w, tt.h); got != tt.want {
			t.Errorf("NV12FrameSize(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
	f := blackFrame(4, 4)
	if f[0] != 16 || f[15] != 16 || f[16] != 128 || f[23] != 128 {
		t.Errorf("blackFrame = % x", f)
	}
}
