package codec

import (
	"math"
	"strconv"
	"strings"

	"github.com/smazurov/hwcodec/internal/logging"
)

// OptionSetter writes encoder private options.
type OptionSetter interface {
	Set(key, value string) error
	SetInt(key string, value int64) error
}

// vendorOption is one key/value write for encoders whose name contains vendor.
type vendorOption struct {
	vendor string
	key    string
	value  string
	isInt  bool
	intVal int64
}

func str(vendor, key, value string) vendorOption {
	return vendorOption{vendor: vendor, key: key, value: value}
}

func integer(vendor, key string, value int64) vendorOption {
	return vendorOption{vendor: vendor, key: key, value: strconv.FormatInt(value, 10), isInt: true, intVal: value}
}

var latencyFreeOptions = []vendorOption{
	str(VendorNvenc, "delay", "0"),
	str(VendorAMF, "query_timeout", "1000"),
	str(VendorQSV, "async_depth", "1"),
	str(VendorVAAPI, "async_depth", "1"),
}

// p7 isn't zero latency, so nvenc has no high tier.
var qualityOptions = map[Quality][]vendorOption{
	QualityHigh: {
		str(VendorAMF, "quality", "quality"),
		str(VendorQSV, "preset", "veryslow"),
	},
	QualityMedium: {
		str(VendorNvenc, "preset", "p4"),
		str(VendorAMF, "quality", "balanced"),
		str(VendorQSV, "preset", "medium"),
	},
	QualityLow: {
		str(VendorNvenc, "preset", "p1"),
		str(VendorAMF, "quality", "speed"),
		str(VendorQSV, "preset", "veryfast"),
	},
}

var rateControlOptions = map[RateControl][]vendorOption{
	RateControlCBR: {
		str(VendorNvenc, "rc", "cbr"),
		str(VendorAMF, "rc", "cbr"),
	},
	RateControlVBR: {
		str(VendorNvenc, "rc", "vbr"),
		str(VendorAMF, "rc", "vbr_latency"),
	},
}

var forceHWOptions = []vendorOption{
	integer(VendorMediaFoundation, "hw_encoding", 1),
}

// scenario 1 is the Media Foundation DisplayRemoting scenario.
var otherOptions = []vendorOption{
	integer(VendorMediaFoundation, "scenario", 1),
	integer(VendorVAAPI, "idr_interval", math.MaxInt32),
}

// apply writes every option whose vendor token is contained in name, in order.
// It stops at the first failing write.
func apply(fn string, s OptionSetter, name string, opts []vendorOption) error {
	for _, o := range opts {
		if !strings.Contains(name, o.vendor) {
			continue
		}
		var err error
		if o.isInt {
			err = s.SetInt(o.key, o.intVal)
		} else {
			err = s.Set(o.key, o.value)
		}
		if err != nil {
			logging.GetLogger("codec").Error("Failed to set encoder option",
				"func", fn, "vendor", vendorName(o.vendor), "encoder", name,
				"key", o.key, "value", o.value, "error", err)
			return &OptionError{Func: fn, Vendor: vendorName(o.vendor), Key: o.key, Value: o.value, Err: err}
		}
	}
	return nil
}

func vendorName(token string) string {
	if token == VendorMediaFoundation {
		return "mediafoundation"
	}
	return token
}

// SetLatencyFree disables encoder-side frame queueing.
func SetLatencyFree(s OptionSetter, name string) error {
	return apply("SetLatencyFree", s, name, latencyFreeOptions)
}

// SetQuality maps a quality tier onto the vendor preset.
func SetQuality(s OptionSetter, name string, q Quality) error {
	return apply("SetQuality", s, name, qualityOptions[q])
}

// SetRateControl selects CBR or VBR on encoders that expose it.
func SetRateControl(s OptionSetter, name string, rc RateControl) error {
	return apply("SetRateControl", s, name, rateControlOptions[rc])
}

// SetGPU pins nvenc to a GPU. A negative index means unset and is a no-op.
func SetGPU(s OptionSetter, name string, gpu int) error {
	if gpu < 0 {
		return nil
	}
	return apply("SetGPU", s, name, []vendorOption{integer(VendorNvenc, "gpu", int64(gpu))})
}

// ForceHW refuses software fallback on Media Foundation encoders.
func ForceHW(s OptionSetter, name string) error {
	return apply("ForceHW", s, name, forceHWOptions)
}

// SetOthers applies fixed per-vendor tuning.
func SetOthers(s OptionSetter, name string) error {
	return apply("SetOthers", s, name, otherOptions)
}

// Tuning bundles the intents applied by Tune.
type Tuning struct {
	Quality     Quality
	RateControl RateControl
	GPU         int
}

// Tune applies every tuning function in order and stops at the first failure.
func Tune(s OptionSetter, name string, t Tuning) error {
	if err := SetLatencyFree(s, name); err != nil {
		return err
	}
	if err := SetQuality(s, name, t.Quality); err != nil {
		return err
	}
	if err := SetRateControl(s, name, t.RateControl); err != nil {
		return err
	}
	if err := SetGPU(s, name, t.GPU); err != nil {
		return err
	}
	if err := ForceHW(s, name); err != nil {
		return err
	}
	return SetOthers(s, name)
}
