// Package packetizer turns encoded access units into RTP packets.
package packetizer

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"github.com/smazurov/hwcodec/internal/annexb"
	"github.com/smazurov/hwcodec/internal/hwcodec"
)

const (
	// ClockRate is the RTP clock of every video payload.
	ClockRate = 90000
	// DefaultMTU leaves room for IP, UDP and SRTP overhead.
	DefaultMTU = 1200
)

var startCode = []byte{0, 0, 0, 1}

// Packetizer splits access units of one stream into RTP packets. It caches
// the latest parameter sets and repeats them before key frames that arrive
// without them so late joiners can start decoding.
type Packetizer struct {
	mu          sync.Mutex
	codecName   string
	payloadType uint8
	packetizer  rtp.Packetizer
	base        uint32
	params      parameterSets
}

// New creates a packetizer for hwcodec.H264 or hwcodec.H265.
func New(format hwcodec.DataFormat, payloadType uint8, ssrc uint32) (*Packetizer, error) {
	return NewWithMTU(format, payloadType, ssrc, DefaultMTU)
}

// NewWithMTU is New with an explicit MTU.
func NewWithMTU(format hwcodec.DataFormat, payloadType uint8, ssrc uint32, mtu uint16) (*Packetizer, error) {
	var payloader rtp.Payloader
	switch format {
	case hwcodec.H264:
		payloader = &codecs.H264Payloader{}
	case hwcodec.H265:
		payloader = &codecs.H265Payloader{}
	default:
		return nil, fmt.Errorf("%w: no RTP payloader for %s", hwcodec.ErrInvalidParam, format)
	}
	if payloadType > 127 {
		return nil, fmt.Errorf("%w: payload type %d", hwcodec.ErrInvalidParam, payloadType)
	}

	return &Packetizer{
		codecName:   format.CodecName(),
		payloadType: payloadType,
		packetizer:  rtp.NewPacketizer(mtu, payloadType, ssrc, payloader, rtp.NewRandomSequencer(), ClockRate),
		base:        rand.Uint32(),
	}, nil
}

// SetFmtp seeds the parameter set cache from an SDP fmtp line.
func (p *Packetizer) SetFmtp(fmtpLine string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.codecName == core.CodecH265 {
		p.params.vps, p.params.sps, p.params.pps = parseH265Sprop(fmtpLine)
		return
	}
	p.params.sps, p.params.pps = parseSpsPps(fmtpLine)
}

// Codec describes the stream for signalling, with the fmtp line built from
// the parameter sets seen so far.
func (p *Packetizer) Codec() *core.Codec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &core.Codec{
		Name:        p.codecName,
		ClockRate:   ClockRate,
		PayloadType: p.payloadType,
		FmtpLine:    p.params.fmtp(p.codecName),
	}
}

// Timestamp converts a presentation time in milliseconds to the RTP clock.
func (p *Packetizer) Timestamp(ms int64) uint32 {
	return p.base + uint32(ms*ClockRate/1000)
}

// Packetize returns the RTP packets for one access unit. The last packet
// carries the marker bit.
func (p *Packetizer) Packetize(frame hwcodec.EncodeFrame) []*rtp.Packet {
	if len(frame.Data) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	hasParams := p.params.update(p.codecName, frame.Data)
	data := frame.Data
	if frame.Key && !hasParams {
		data = append(p.params.annexB(), data...)
	}

	packets := p.packetizer.Packetize(data, 0)
	ts := p.Timestamp(frame.PTS)
	for _, pkt := range packets {
		pkt.Timestamp = ts
	}
	return packets
}

// parameterSets holds the latest VPS/SPS/PPS NAL units without start codes.
type parameterSets struct {
	vps, sps, pps []byte
}

// update records parameter sets found in an access unit and reports whether
// the unit carries a complete set.
func (s *parameterSets) update(codecName string, au []byte) bool {
	var vps, sps, pps bool
	annexb.ForEachNAL(au, func(nal []byte) {
		if len(nal) == 0 {
			return
		}
		if codecName == core.CodecH265 {
			switch (nal[0] >> 1) & 0x3F {
			case 32:
				s.vps, vps = bytes.Clone(nal), true
			case 33:
				s.sps, sps = bytes.Clone(nal), true
			case 34:
				s.pps, pps = bytes.Clone(nal), true
			}
			return
		}
		switch nal[0] & 0x1F {
		case 7:
			s.sps, sps = bytes.Clone(nal), true
		case 8:
			s.pps, pps = bytes.Clone(nal), true
		}
	})
	if codecName == core.CodecH265 {
		return vps && sps && pps
	}
	return sps && pps
}

// annexB returns the cached parameter sets with start codes.
func (s *parameterSets) annexB() []byte {
	var out []byte
	for _, nal := range [][]byte{s.vps, s.sps, s.pps} {
		if len(nal) > 0 {
			out = append(out, startCode...)
			out = append(out, nal...)
		}
	}
	return out
}
