package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/smazurov/hwcodec/internal/codec"
)

var optionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(:[a-z]+)?$`)

// Args collects encoder private options as command line arguments.
// It implements codec.OptionSetter; a later write of the same key replaces
// the earlier value, as repeated av_opt_set calls would.
type Args struct {
	keys   []string
	values map[string]string
}

// NewArgs returns an empty argument set.
func NewArgs() *Args {
	return &Args{values: make(map[string]string)}
}

// Set records -key value.
func (a *Args) Set(key, value string) error {
	if !optionKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: invalid option key %q", codec.ErrOptionRejected, key)
	}
	if value == "" || strings.ContainsAny(value, " \t\n\"'") {
		return fmt.Errorf("%w: invalid value %q for option %s", codec.ErrOptionRejected, value, key)
	}
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, exists := a.values[key]; !exists {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
	return nil
}

// SetInt records -key with a decimal value.
func (a *Args) SetInt(key string, value int64) error {
	return a.Set(key, strconv.FormatInt(value, 10))
}

// Get returns the value recorded for key.
func (a *Args) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Len returns the number of recorded options.
func (a *Args) Len() int {
	return len(a.keys)
}

// Slice returns the options in insertion order as -key value pairs.
func (a *Args) Slice() []string {
	out := make([]string, 0, len(a.keys)*2)
	for _, k := range a.keys {
		out = append(out, "-"+k, a.values[k])
	}
	return out
}

// String returns the options joined by spaces.
func (a *Args) String() string {
	return strings.Join(a.Slice(), " ")
}

var colorRangeNames = map[int]string{
	codec.ColorRangeMPEG: "tv",
	2:                    "pc",
}

var smpteNames = map[int]string{
	1: "bt709",
	6: "smpte170m",
	9: "bt2020",
}

// ContextArgs converts a codec context into FFmpeg output options.
func ContextArgs(c *codec.Context) []string {
	args := []string{
		"-bf", strconv.Itoa(c.MaxBFrames),
		"-g", strconv.Itoa(c.GOPSize),
		"-keyint_min", strconv.Itoa(c.KeyintMin),
	}

	if c.BitRate > 0 {
		args = append(args, "-b:v", strconv.FormatInt(c.BitRate, 10))
	}
	if c.RCMaxRate > 0 {
		args = append(args, "-maxrate", strconv.FormatInt(c.RCMaxRate, 10))
	}
	if c.Framerate.Num > 0 && c.Framerate.Den > 0 {
		args = append(args, "-r", fmt.Sprintf("%d/%d", c.Framerate.Num, c.Framerate.Den))
	}

	if c.Flags&codec.FlagLowDelay != 0 {
		args = append(args, "-flags", "+low_delay")
	}
	if c.Flags2&codec.Flag2LocalHeader != 0 {
		args = append(args, "-flags2", "+local_header")
	}

	if c.Slices > 0 {
		args = append(args, "-slices", strconv.Itoa(c.Slices))
	}
	switch c.ThreadType {
	case codec.ThreadSlice:
		args = append(args, "-thread_type", "slice")
	case codec.ThreadFrame:
		args = append(args, "-thread_type", "frame")
	}
	if c.ThreadCount > 0 {
		args = append(args, "-threads", strconv.Itoa(c.ThreadCount))
	}

	if name, ok := colorRangeNames[c.ColorRange]; ok {
		args = append(args, "-color_range", name)
	}
	if name, ok := smpteNames[c.Colorspace]; ok {
		args = append(args, "-colorspace", name)
	}
	if name, ok := smpteNames[c.ColorPrimaries]; ok {
		args = append(args, "-color_primaries", name)
	}
	if name, ok := smpteNames[c.ColorTRC]; ok {
		args = append(args, "-color_trc", name)
	}

	switch c.Profile {
	case codec.ProfileH264High:
		args = append(args, "-profile:v", "high")
	case codec.ProfileHEVCMain:
		args = append(args, "-profile:v", "main")
	}

	return args
}
