// Package codec models the codec context fields hwcodec configures and maps
// small encoding intents onto vendor-specific encoder options.
package codec

import "fmt"

// Quality is the requested encoder quality tier.
type Quality int

// Quality tiers.
const (
	QualityHigh Quality = iota
	QualityMedium
	QualityLow
)

func (q Quality) String() string {
	switch q {
	case QualityHigh:
		return "high"
	case QualityMedium:
		return "medium"
	case QualityLow:
		return "low"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// ParseQuality converts a config string to a Quality.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "high":
		return QualityHigh, nil
	case "medium", "":
		return QualityMedium, nil
	case "low":
		return QualityLow, nil
	}
	return 0, fmt.Errorf("%w: unknown quality %q", ErrInvalidParam, s)
}

// RateControl is the requested rate control strategy.
type RateControl int

// Rate control modes.
const (
	RateControlCBR RateControl = iota
	RateControlVBR
)

func (rc RateControl) String() string {
	switch rc {
	case RateControlCBR:
		return "cbr"
	case RateControlVBR:
		return "vbr"
	default:
		return fmt.Sprintf("rc(%d)", int(rc))
	}
}

// ParseRateControl converts a config string to a RateControl.
func ParseRateControl(s string) (RateControl, error) {
	switch s {
	case "cbr", "":
		return RateControlCBR, nil
	case "vbr":
		return RateControlVBR, nil
	}
	return 0, fmt.Errorf("%w: unknown rate control %q", ErrInvalidParam, s)
}

// Vendor tokens matched against encoder names.
const (
	VendorNvenc           = "nvenc"
	VendorAMF             = "amf"
	VendorQSV             = "qsv"
	VendorVAAPI           = "vaapi"
	VendorMediaFoundation = "_mf"
)

// Vendors lists every token in match order.
var Vendors = []string{VendorNvenc, VendorAMF, VendorQSV, VendorVAAPI, VendorMediaFoundation}
