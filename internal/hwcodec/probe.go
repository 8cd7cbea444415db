package hwcodec

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/hwcodec/internal/events"
	"github.com/smazurov/hwcodec/internal/ffmpeg"
	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/metrics"
	"github.com/smazurov/hwcodec/internal/process"
)

// MaxAdapters bounds the descriptors one probe returns per vendor.
const MaxAdapters = 16

// probeTimeout bounds a single test encode or decode.
var probeTimeout = 10 * time.Second

// renderNodeGlob is replaced in tests.
var renderNodeGlob = "/dev/dri/renderD*"

// Adapters returns the LUIDs of the DRM render nodes present, ascending.
func Adapters() []int64 {
	matches, err := filepath.Glob(renderNodeGlob)
	if err != nil {
		return nil
	}
	var luids []int64
	for _, m := range matches {
		n, err := strconv.ParseInt(strings.TrimPrefix(filepath.Base(m), "renderD"), 10, 64)
		if err != nil || n < 128 {
			continue
		}
		luids = append(luids, n-128)
	}
	slices.Sort(luids)
	return luids
}

// ProbeEncoder opens the named encoder on an adapter and encodes one black
// frame at 1280x720. A nil error means at least one access unit came out.
func ProbeEncoder(ctx context.Context, name string, luid int64) error {
	format := H264
	if strings.HasPrefix(name, "hevc") {
		format = H265
	}
	return probeEncode(ctx, EncodeContext{
		Name:       name,
		LUID:       luid,
		API:        APIVAAPI,
		DataFormat: format,
		Width:      1280,
		Height:     720,
		Kbs:        4000,
		FPS:        30,
		GOP:        30,
	})
}

func probeEncode(ctx context.Context, ec EncodeContext) error {
	enc, err := NewEncoder(ec)
	if err != nil {
		return err
	}

	got := make(chan struct{}, 1)
	frame := blackFrame(ec.Width, ec.Height)
	err = enc.Encode(frame, 0, func(EncodeFrame) {
		select {
		case got <- struct{}{}:
		default:
		}
	})

	// Close flushes, so a working encoder has produced output once it returns.
	closed := make(chan struct{})
	go func() {
		_ = enc.Close()
		close(closed)
	}()

	timer := time.NewTimer(probeTimeout)
	defer timer.Stop()
	select {
	case <-closed:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s: probe timed out", enc.Name())
	}

	if err != nil {
		return err
	}
	select {
	case <-got:
		return nil
	default:
		return fmt.Errorf("%s: no output", enc.Name())
	}
}

// TestEncode tries every candidate encoder for ec on each LUID in luids
// (every render node when luids is empty) and returns at most maxDescs
// working descriptors.
func TestEncode(ctx context.Context, maxDescs int, luids []int64, ec EncodeContext) ([]AdapterDesc, error) {
	if maxDescs <= 0 {
		return nil, fmt.Errorf("%w: max descriptors %d", ErrInvalidParam, maxDescs)
	}
	if err := ec.validate(); err != nil {
		return nil, err
	}
	if len(luids) == 0 {
		luids = Adapters()
	}
	if len(luids) == 0 {
		luids = []int64{0}
	}

	candidates := encoderCandidates(ec.Driver, ec.API, ec.DataFormat)
	if ec.Name != "" {
		candidates = []string{ec.Name}
	}

	logger := logging.GetLogger("probe")
	var descs []AdapterDesc
	for _, luid := range luids {
		for _, name := range candidates {
			if len(descs) >= maxDescs {
				return descs, nil
			}
			if ctx.Err() != nil {
				return descs, ctx.Err()
			}
			try := ec
			try.Name = name
			try.LUID = luid
			err := probeEncode(ctx, try)
			metrics.SetProbeResult("encode", name, err == nil)
			if err != nil {
				logger.Debug("Encoder probe failed", "encoder", name, "luid", luid, "error", err)
				continue
			}
			logger.Info("Encoder probe succeeded", "encoder", name, "luid", luid)
			descs = append(descs, AdapterDesc{LUID: luid, Name: name})
			break
		}
	}
	return descs, nil
}

// TestDecode decodes data with dc on every render node and returns at most
// maxDescs descriptors of adapters that produced a frame.
func TestDecode(ctx context.Context, maxDescs int, dc DecodeContext, data []byte) ([]AdapterDesc, error) {
	if maxDescs <= 0 {
		return nil, fmt.Errorf("%w: max descriptors %d", ErrInvalidParam, maxDescs)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty sample", ErrInvalidParam)
	}
	if err := dc.validate(); err != nil {
		return nil, err
	}

	luids := Adapters()
	if len(luids) == 0 {
		luids = []int64{0}
	}

	logger := logging.GetLogger("probe")
	name := decodeParams(&dc).HWAccel + "/" + dc.DataFormat.prefix()
	var descs []AdapterDesc
	for _, luid := range luids {
		if len(descs) >= maxDescs {
			break
		}
		if ctx.Err() != nil {
			return descs, ctx.Err()
		}
		try := dc
		try.LUID = luid
		err := probeDecode(ctx, try, data)
		metrics.SetProbeResult("decode", name, err == nil)
		if err != nil {
			logger.Debug("Decoder probe failed", "decoder", name, "luid", luid, "error", err)
			continue
		}
		descs = append(descs, AdapterDesc{LUID: luid, Name: name})
	}
	return descs, nil
}

func probeDecode(ctx context.Context, dc DecodeContext, data []byte) error {
	dec, err := NewDecoder(dc)
	if err != nil {
		return err
	}

	got := make(chan struct{}, 1)
	err = dec.Decode(data, func(DecodeFrame) {
		select {
		case got <- struct{}{}:
		default:
		}
	})

	closed := make(chan struct{})
	go func() {
		_ = dec.Close()
		close(closed)
	}()

	timer := time.NewTimer(probeTimeout)
	defer timer.Stop()
	select {
	case <-closed:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("decoder probe timed out")
	}

	if err != nil {
		return err
	}
	select {
	case <-got:
		return nil
	default:
		return fmt.Errorf("no frame decoded")
	}
}

// DriverSupport reports whether a driver can run here: ffmpeg must start,
// and MFX additionally needs a QSV encoder and a render node.
func DriverSupport(ctx context.Context, driver Driver) bool {
	names, err := compiled.get(ctx, FFmpegBinary())
	if err != nil {
		return false
	}
	switch driver {
	case DriverFFmpegVRAM:
		return slices.ContainsFunc(names, ffmpeg.IsHardwareEncoder)
	case DriverMFX:
		hasQSV := slices.Contains(names, "h264_qsv") || slices.Contains(names, "hevc_qsv")
		return hasQSV && (runtime.GOOS == "windows" || len(Adapters()) > 0)
	}
	return false
}

// probeAPIs lists the APIs worth probing on this platform.
func probeAPIs(driver Driver) []API {
	if driver == DriverMFX {
		return []API{APIQSV}
	}
	if runtime.GOOS == "windows" {
		return []API{APIDX11}
	}
	return []API{APICUDA, APIVAAPI, APIQSV}
}

// AvailableEncoders probes every driver, API and format concurrently using
// base for size and rates, and returns one context per working adapter.
func AvailableEncoders(ctx context.Context, base EncodeContext) []EncodeContext {
	var inputs []EncodeContext
	for _, driver := range []Driver{DriverFFmpegVRAM, DriverMFX} {
		if !DriverSupport(ctx, driver) {
			continue
		}
		for _, api := range probeAPIs(driver) {
			for _, format := range []DataFormat{H264, H265} {
				in := base
				in.Driver, in.API, in.DataFormat, in.Name = driver, api, format, ""
				inputs = append(inputs, in)
			}
		}
	}

	var (
		mu      sync.Mutex
		outputs []EncodeContext
		wg      sync.WaitGroup
	)
	for _, in := range inputs {
		wg.Add(1)
		go func(in EncodeContext) {
			defer wg.Done()
			descs, err := TestEncode(ctx, MaxAdapters, nil, in)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, d := range descs {
				out := in
				out.LUID, out.Name = d.LUID, d.Name
				outputs = append(outputs, out)
			}
		}(in)
	}
	wg.Wait()

	sortEncodeContexts(outputs)
	publishProbe("encode", outputs, func(c EncodeContext) (Driver, string) { return c.Driver, c.Name })
	return outputs
}

// AvailableDecoders probes every driver, API and format concurrently with
// the sample bitstreams in samples and returns one context per working adapter.
func AvailableDecoders(ctx context.Context, samples map[DataFormat][]byte) []DecodeContext {
	var inputs []DecodeContext
	for _, driver := range []Driver{DriverFFmpegVRAM, DriverMFX} {
		for _, api := range probeAPIs(driver) {
			for format := range samples {
				inputs = append(inputs, DecodeContext{Driver: driver, API: api, DataFormat: format})
			}
		}
	}

	var (
		mu      sync.Mutex
		outputs []DecodeContext
		wg      sync.WaitGroup
	)
	for _, in := range inputs {
		wg.Add(1)
		go func(in DecodeContext) {
			defer wg.Done()
			descs, err := TestDecode(ctx, MaxAdapters, in, samples[in.DataFormat])
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, d := range descs {
				out := in
				out.LUID = d.LUID
				outputs = append(outputs, out)
			}
		}(in)
	}
	wg.Wait()

	slices.SortFunc(outputs, func(a, b DecodeContext) int {
		return strings.Compare(decodeKey(a), decodeKey(b))
	})
	publishProbe("decode", outputs, func(c DecodeContext) (Driver, string) {
		return c.Driver, decodeParams(&c).HWAccel + "/" + c.DataFormat.prefix()
	})
	return outputs
}

func decodeKey(c DecodeContext) string {
	return fmt.Sprintf("%d/%d/%d/%04d", c.Driver, c.API, c.DataFormat, c.LUID)
}

func sortEncodeContexts(cs []EncodeContext) {
	slices.SortFunc(cs, func(a, b EncodeContext) int {
		ka := fmt.Sprintf("%d/%d/%d/%04d/%s", a.Driver, a.API, a.DataFormat, a.LUID, a.Name)
		kb := fmt.Sprintf("%d/%d/%d/%04d/%s", b.Driver, b.API, b.DataFormat, b.LUID, b.Name)
		return strings.Compare(ka, kb)
	})
}

func publishProbe[T any](kind string, found []T, key func(T) (Driver, string)) {
	byDriver := map[Driver][]string{}
	for _, f := range found {
		d, name := key(f)
		byDriver[d] = append(byDriver[d], name)
	}
	for _, driver := range []Driver{DriverFFmpegVRAM, DriverMFX} {
		publish(events.ProbeCompletedEvent{
			Kind:      kind,
			Driver:    driver.String(),
			Found:     byDriver[driver],
			Timestamp: timestamp(),
		})
	}
}

// SampleStream encodes a short test pattern with a software encoder and
// returns the elementary stream, for decoder probes.
func SampleStream(ctx context.Context, format DataFormat, width, height int) ([]byte, error) {
	encoder := "libx264"
	if format == H265 {
		encoder = "libx265"
	}
	command, err := ffmpeg.BuildSampleCommand(FFmpegBinary(), encoder, width, height, 3)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := process.Output(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", format, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sample %s: empty output", format)
	}
	return out, nil
}
