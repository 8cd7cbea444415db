package codec

import (
	"math"
	"strings"
)

// Rational is a fraction, used for time base and frame rate.
type Rational struct {
	Num int
	Den int
}

// Invert returns Den/Num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Codec context flags.
const (
	FlagLowDelay     = 1 << 19
	Flag2LocalHeader = 1 << 3
)

// ThreadType selects the threading model of the codec.
type ThreadType int

// Thread types.
const (
	ThreadFrame ThreadType = 1
	ThreadSlice ThreadType = 2
)

// Profiles set by InitContext.
const (
	ProfileUnknown  = -99
	ProfileH264High = 100
	ProfileHEVCMain = 1
)

// Color metadata values.
const (
	ColorRangeMPEG         = 1
	ColorPrimariesSMPTE170 = 6
	ColorTRCSMPTE170       = 6
	ColorSpaceSMPTE170     = 6
)

// Context holds the codec context fields hwcodec configures before opening
// an encoder.
type Context struct {
	HasBFrames     int
	MaxBFrames     int
	GOPSize        int
	KeyintMin      int
	BitRate        int64
	RCMaxRate      int64
	TimeBase       Rational
	Framerate      Rational
	Flags          int
	Flags2         int
	Slices         int
	ThreadType     ThreadType
	ThreadCount    int
	ColorRange     int
	Colorspace     int
	ColorPrimaries int
	ColorTRC       int
	Profile        int
	Width          int
	Height         int
}

// NewContext returns a context with the profile unset.
func NewContext(width, height int) *Context {
	return &Context{
		Profile: ProfileUnknown,
		Width:   width,
		Height:  height,
	}
}

// InitContext applies the fixed low-latency baseline for the named encoder.
// Bit rates below 1000 are treated as unset.
func InitContext(c *Context, name string, bitRate, gop, fps int) {
	c.HasBFrames = 0
	c.MaxBFrames = 0

	switch {
	case gop < 0xFFFF:
		c.GOPSize = gop
	case strings.Contains(name, VendorVAAPI):
		c.GOPSize = math.MaxInt16
	default:
		c.GOPSize = math.MaxInt32
	}
	c.KeyintMin = math.MaxInt32

	if bitRate >= 1000 {
		c.BitRate = int64(bitRate)
		if strings.Contains(name, VendorQSV) {
			c.RCMaxRate = int64(bitRate)
		}
	}

	c.TimeBase = Rational{Num: 1, Den: fps}
	c.Framerate = c.TimeBase.Invert()
	c.Flags2 |= Flag2LocalHeader
	c.Flags |= FlagLowDelay
	c.Slices = 1
	c.ThreadType = ThreadSlice
	c.ThreadCount = c.Slices

	c.ColorRange = ColorRangeMPEG
	c.Colorspace = ColorSpaceSMPTE170
	c.ColorPrimaries = ColorPrimariesSMPTE170
	c.ColorTRC = ColorTRCSMPTE170

	if strings.Contains(name, "h264") {
		c.Profile = ProfileH264High
	} else if strings.Contains(name, "hevc") {
		c.Profile = ProfileHEVCMain
	}
}
