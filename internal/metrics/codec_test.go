package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEncoderCounters(t *testing.T) {
	const enc = "test_encoder_counters"

	FrameSubmitted(enc)
	FrameSubmitted(enc)
	AccessUnitProduced(enc, 1200, true, 5*time.Millisecond)
	AccessUnitProduced(enc, 300, false, 0)

	if got := testutil.ToFloat64(encoderFramesIn.WithLabelValues(enc)); got != 2 {
		t.Errorf("frames in = %v, want 2", got)
	}
	if got := testutil.ToFloat64(encoderFramesOut.WithLabelValues(enc)); got != 2 {
		t.Errorf("frames out = %v, want 2", got)
	}
	if got := testutil.ToFloat64(encoderKeyframes.WithLabelValues(enc)); got != 1 {
		t.Errorf("keyframes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(encoderBytes.WithLabelValues(enc)); got != 1500 {
		t.Errorf("bytes = %v, want 1500", got)
	}
}

func TestActiveGauges(t *testing.T) {
	before := testutil.ToFloat64(encodersActive)
	EncoderOpened()
	EncoderOpened()
	EncoderClosed()
	if got := testutil.ToFloat64(encodersActive); got != before+1 {
		t.Errorf("active encoders = %v, want %v", got, before+1)
	}
	EncoderClosed()

	before = testutil.ToFloat64(decodersActive)
	DecoderOpened()
	if got := testutil.ToFloat64(decodersActive); got != before+1 {
		t.Errorf("active decoders = %v, want %v", got, before+1)
	}
	DecoderClosed()
}

func TestTuningFailures(t *testing.T) {
	TuningFailed("h264_amf", "amf", "quality")
	if got := testutil.ToFloat64(tuningFailures.WithLabelValues("h264_amf", "amf", "quality")); got != 1 {
		t.Errorf("tuning failures = %v, want 1", got)
	}
}

func TestProbeResult(t *testing.T) {
	SetProbeResult("encode", "h264_vaapi", true)
	if got := testutil.ToFloat64(probeResults.WithLabelValues("encode", "h264_vaapi")); got != 1 {
		t.Errorf("probe working = %v, want 1", got)
	}
	SetProbeResult("encode", "h264_vaapi", false)
	if got := testutil.ToFloat64(probeResults.WithLabelValues("encode", "h264_vaapi")); got != 0 {
		t.Errorf("probe working = %v, want 0", got)
	}
}

func TestDecoderFrames(t *testing.T) {
	FrameDecoded("H265")
	if got := testutil.ToFloat64(decoderFrames.WithLabelValues("H265")); got < 1 {
		t.Errorf("decoded frames = %v", got)
	}
}

func TestCountersConcurrency(t *testing.T) {
	const enc = "test_encoder_concurrent"
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			FrameSubmitted(enc)
			EncoderRestarted(enc)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(encoderFramesIn.WithLabelValues(enc)); got != 50 {
		t.Errorf("frames in = %v, want 50", got)
	}
	if got := testutil.ToFloat64(encoderRestarts.WithLabelValues(enc)); got != 50 {
		t.Errorf("restarts = %v, want 50", got)
	}
}
