// Package annexb cuts H.264/H.265 Annex-B elementary streams into access units.
package annexb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/AlexxIT/go2rtc/pkg/h264"
	avc "github.com/AlexxIT/go2rtc/pkg/h264/annexb"
	"github.com/AlexxIT/go2rtc/pkg/h265"
)

// AccessUnit is every NAL unit of one coded picture, start codes included.
type AccessUnit struct {
	Data []byte
	Key  bool
}

// Splitter accumulates stream bytes and emits complete access units.
// A unit is complete once the first NAL of the next one has been seen,
// or on Flush. Not safe for concurrent use.
type Splitter struct {
	codec   string
	emit    func(AccessUnit)
	buf     []byte
	scan    int
	auStart int
	hasVCL  bool
	key     bool
}

// NewSplitter creates a splitter for core.CodecH264 or core.CodecH265.
func NewSplitter(codecName string, emit func(AccessUnit)) (*Splitter, error) {
	if codecName != core.CodecH264 && codecName != core.CodecH265 {
		return nil, fmt.Errorf("annexb: unsupported codec %q", codecName)
	}
	return &Splitter{codec: codecName, emit: emit}, nil
}

// Write appends stream bytes and emits any access units they complete.
func (s *Splitter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	s.split()
	return len(p), nil
}

// Flush emits whatever is buffered as the final access unit.
func (s *Splitter) Flush() {
	if s.auStart < len(s.buf) && s.hasVCL {
		s.emit(AccessUnit{Data: bytes.Clone(s.buf[s.auStart:]), Key: s.key})
	}
	s.buf = s.buf[:0]
	s.scan, s.auStart = 0, 0
	s.hasVCL, s.key = false, false
}

// Buffered returns the number of bytes not yet emitted.
func (s *Splitter) Buffered() int {
	return len(s.buf) - s.auStart
}

func (s *Splitter) split() {
	for {
		i := indexStartCode(s.buf, s.scan)
		if i < 0 {
			// keep the last two bytes: they may be the head of a start code
			if n := len(s.buf) - 2; n > s.scan {
				s.scan = n
			}
			break
		}
		header := i + 3
		if header+3 > len(s.buf) {
			s.scan = i
			break
		}

		begin := i
		if begin > s.auStart && s.buf[begin-1] == 0 {
			begin--
		}

		nal := s.buf[header:]
		var startsAU, vcl, key bool
		if s.codec == core.CodecH264 {
			startsAU, vcl, key = classifyH264(nal)
		} else {
			startsAU, vcl, key = classifyH265(nal)
		}

		if startsAU && s.hasVCL {
			s.emit(AccessUnit{Data: bytes.Clone(s.buf[s.auStart:begin]), Key: s.key})
			s.auStart = begin
			s.hasVCL, s.key = false, false
		}
		if vcl {
			s.hasVCL = true
		}
		if key {
			s.key = true
		}
		s.scan = header
	}

	if s.auStart > 0 {
		n := copy(s.buf, s.buf[s.auStart:])
		s.buf = s.buf[:n]
		s.scan -= s.auStart
		s.auStart = 0
	}
}

// indexStartCode returns the index of the next 00 00 01 at or after from.
func indexStartCode(b []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(b) {
		return -1
	}
	i := bytes.Index(b[from:], []byte{0, 0, 1})
	if i < 0 {
		return -1
	}
	return from + i
}

func classifyH264(nal []byte) (startsAU, vcl, key bool) {
	typ := nal[0] & 0x1F
	switch {
	case typ >= h264.NALUTypePFrame && typ <= h264.NALUTypeIFrame:
		// first_mb_in_slice == 0 encodes as a single 1 bit
		return nal[1]&0x80 != 0, true, typ == h264.NALUTypeIFrame
	case typ == h264.NALUTypeAUD, typ == h264.NALUTypeSPS, typ == h264.NALUTypePPS, typ == h264.NALUTypeSEI, typ >= 14 && typ <= 18:
		return true, false, false
	}
	return false, false, false
}

// h265AUD is the HEVC access unit delimiter NAL type.
const h265AUD = 35

func classifyH265(nal []byte) (startsAU, vcl, key bool) {
	typ := (nal[0] >> 1) & 0x3F
	switch {
	case typ < h265.NALUTypeVPS:
		return nal[2]&0x80 != 0, true, typ >= h265.NALUTypeIFrame && typ <= h265.NALUTypeIFrame3
	case typ >= h265.NALUTypeVPS && typ <= h265AUD, typ == h265.NALUTypePrefixSEI, typ >= 41 && typ <= 44, typ >= 48 && typ <= 55:
		return true, false, false
	}
	return false, false, false
}

// IsKeyFrame reports whether an Annex-B access unit holds an IDR/IRAP picture.
func IsKeyFrame(codecName string, au []byte) bool {
	b := avc.EncodeToAVCC(au)
	if !wellFormedAVCC(b) {
		return false
	}
	if codecName == core.CodecH265 {
		return h265.IsKeyframe(b)
	}
	return h264.IsKeyframe(b)
}

// wellFormedAVCC reports whether b is a non-empty run of length-prefixed,
// non-empty NAL units.
func wellFormedAVCC(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for len(b) > 0 {
		if len(b) < 5 {
			return false
		}
		n := int(binary.BigEndian.Uint32(b))
		if n == 0 || 4+n > len(b) {
			return false
		}
		b = b[4+n:]
	}
	return true
}

// ForEachNAL calls fn with every NAL unit payload of an Annex-B buffer,
// start codes stripped.
func ForEachNAL(b []byte, fn func(nal []byte)) {
	start := -1
	for i := 0; ; {
		j := indexStartCode(b, i)
		if j < 0 {
			break
		}
		if start >= 0 {
			end := j
			if end > start && b[end-1] == 0 {
				end--
			}
			fn(b[start:end])
		}
		start = j + 3
		i = start
	}
	if start >= 0 && start < len(b) {
		fn(b[start:])
	}
}
