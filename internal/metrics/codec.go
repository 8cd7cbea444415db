// Package metrics provides Prometheus metrics for hwcodec encoders and decoders.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hwcodec"

var (
	encodersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "active",
		Help:      "Number of open encoders",
	})

	encoderFramesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "frames_in_total",
		Help:      "Raw frames submitted to encoders",
	}, []string{"encoder"})

	encoderFramesOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "frames_out_total",
		Help:      "Access units produced by encoders",
	}, []string{"encoder"})

	encoderKeyframes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "keyframes_total",
		Help:      "Keyframes produced by encoders",
	}, []string{"encoder"})

	encoderBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "bytes_total",
		Help:      "Encoded bytes produced",
	}, []string{"encoder"})

	encoderRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "restarts_total",
		Help:      "Encoder subprocess restarts caused by reconfiguration",
	}, []string{"encoder"})

	encodeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "latency_seconds",
		Help:      "Time from frame submission to access unit delivery",
		Buckets:   []float64{.002, .005, .01, .02, .04, .08, .16, .32, .64},
	}, []string{"encoder"})

	tuningFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tuning",
		Name:      "failures_total",
		Help:      "Vendor options rejected by the option setter",
	}, []string{"encoder", "vendor", "option"})

	decodersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "decoder",
		Name:      "active",
		Help:      "Number of open decoders",
	})

	decoderFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "decoder",
		Name:      "frames_total",
		Help:      "Frames produced by decoders",
	}, []string{"format"})

	probeResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "working",
		Help:      "1 when the last probe found the codec working, 0 otherwise",
	}, []string{"kind", "codec"})
)

// EncoderOpened records a new open encoder.
func EncoderOpened() { encodersActive.Inc() }

// EncoderClosed records a closed encoder.
func EncoderClosed() { encodersActive.Dec() }

// FrameSubmitted counts one raw frame written to an encoder.
func FrameSubmitted(encoder string) {
	encoderFramesIn.WithLabelValues(encoder).Inc()
}

// AccessUnitProduced counts one encoded access unit and its latency.
func AccessUnitProduced(encoder string, size int, key bool, latency time.Duration) {
	encoderFramesOut.WithLabelValues(encoder).Inc()
	encoderBytes.WithLabelValues(encoder).Add(float64(size))
	if key {
		encoderKeyframes.WithLabelValues(encoder).Inc()
	}
	if latency > 0 {
		encodeLatency.WithLabelValues(encoder).Observe(latency.Seconds())
	}
}

// EncoderRestarted counts one reconfiguration restart.
func EncoderRestarted(encoder string) {
	encoderRestarts.WithLabelValues(encoder).Inc()
}

// TuningFailed counts one rejected vendor option.
func TuningFailed(encoder, vendor, option string) {
	tuningFailures.WithLabelValues(encoder, vendor, option).Inc()
}

// DecoderOpened records a new open decoder.
func DecoderOpened() { decodersActive.Inc() }

// DecoderClosed records a closed decoder.
func DecoderClosed() { decodersActive.Dec() }

// FrameDecoded counts one decoded frame.
func FrameDecoded(format string) {
	decoderFrames.WithLabelValues(format).Inc()
}

// SetProbeResult records whether a probed codec works.
func SetProbeResult(kind, codec string, working bool) {
	v := 0.0
	if working {
		v = 1
	}
	probeResults.WithLabelValues(kind, codec).Set(v)
}
