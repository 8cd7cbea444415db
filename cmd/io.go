package cmd

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/rtcp"

	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/packetizer"
)

// openInput opens path for reading; "-" is stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openOutput creates path for writing; "-" is stdout.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

// frameSink consumes encoded access units. Write is called from the
// encoder's output goroutine; the first error is kept and returned by Close.
type frameSink interface {
	Write(frame hwcodec.EncodeFrame)
	Close() error
}

// annexBSink writes the raw elementary stream.
type annexBSink struct {
	w      io.WriteCloser
	mu     sync.Mutex
	err    error
	frames int
	bytes  int
}

func newAnnexBSink(w io.WriteCloser) *annexBSink {
	return &annexBSink{w: w}
}

func (s *annexBSink) Write(frame hwcodec.EncodeFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	n, err := s.w.Write(frame.Data)
	s.bytes += n
	s.frames++
	s.err = err
}

func (s *annexBSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Close(); err != nil && s.err == nil {
		s.err = err
	}
	return s.err
}

// rtpSink sends each access unit as RTP over UDP, followed by an RTCP
// sender report after every key frame on the same port.
type rtpSink struct {
	conn    net.Conn
	pkt     *packetizer.Packetizer
	ssrc    uint32
	mu      sync.Mutex
	err     error
	packets int
	octets  int
	reports int
}

func newRTPSink(addr string, format hwcodec.DataFormat, payloadType uint8, ssrc uint32, mtu uint16) (*rtpSink, error) {
	pkt, err := packetizer.NewWithMTU(format, payloadType, ssrc, mtu)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &rtpSink{conn: conn, pkt: pkt, ssrc: ssrc}, nil
}

func (s *rtpSink) Write(frame hwcodec.EncodeFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	for _, p := range s.pkt.Packetize(frame) {
		b, err := p.Marshal()
		if err != nil {
			s.err = fmt.Errorf("marshal rtp: %w", err)
			return
		}
		if _, err := s.conn.Write(b); err != nil {
			s.err = fmt.Errorf("send rtp: %w", err)
			return
		}
		s.packets++
		s.octets += len(p.Payload)
	}

	if frame.Key {
		s.sendReport(s.pkt.Timestamp(frame.PTS))
	}
}

func (s *rtpSink) sendReport(rtpTime uint32) {
	sr := rtcp.SenderReport{
		SSRC:        s.ssrc,
		NTPTime:     ntpTime(time.Now()),
		RTPTime:     rtpTime,
		PacketCount: uint32(s.packets),
		OctetCount:  uint32(s.octets),
	}
	b, err := sr.Marshal()
	if err != nil {
		s.err = fmt.Errorf("marshal rtcp: %w", err)
		return
	}
	if _, err := s.conn.Write(b); err != nil {
		s.err = fmt.Errorf("send rtcp: %w", err)
		return
	}
	s.reports++
}

// ntpTime converts t to the 64-bit NTP timestamp format.
func ntpTime(t time.Time) uint64 {
	const ntpEpochOffset = 2208988800
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / 1e9
	return secs<<32 | frac
}

// FmtpLine returns the SDP fmtp attribute for the parameter sets seen so far.
func (s *rtpSink) FmtpLine() string {
	return s.pkt.Codec().FmtpLine
}

func (s *rtpSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Close(); err != nil && s.err == nil {
		s.err = err
	}
	return s.err
}
