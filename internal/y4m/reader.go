// Package y4m reads YUV4MPEG2 streams as produced by ffmpeg's yuv4mpegpipe muxer.
package y4m

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smazurov/hwcodec/internal/codec"
)

const (
	streamMagic = "YUV4MPEG2"
	frameMagic  = "FRAME"
	maxLine     = 1024

	// MaxDimension is the largest width or height a header may declare.
	MaxDimension = 16384
)

// ErrBadHeader is returned for a malformed stream or frame header.
var ErrBadHeader = errors.New("y4m: malformed header")

// Header describes the stream.
type Header struct {
	Width      int
	Height     int
	Framerate  codec.Rational
	Interlace  string
	Colorspace string // 420jpeg, 420mpeg2, 420paldv, mono, ...
}

// Frame is one planar picture. U and V are empty for mono streams.
type Frame struct {
	Width, Height int
	Y, U, V       []byte
	StrideY       int
	StrideUV      int
}

// Reader reads frames from a Y4M stream.
type Reader struct {
	r         *bufio.Reader
	header    Header
	chromaW   int
	chromaH   int
	frameSize int
}

// NewReader consumes the stream header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}

	h, err := parseHeader(line)
	if err != nil {
		return nil, err
	}

	rd := &Reader{r: br, header: h}
	switch {
	case strings.HasPrefix(h.Colorspace, "420"):
		rd.chromaW, rd.chromaH = (h.Width+1)/2, (h.Height+1)/2
	case strings.HasPrefix(h.Colorspace, "422"):
		rd.chromaW, rd.chromaH = (h.Width+1)/2, h.Height
	case strings.HasPrefix(h.Colorspace, "444") && !strings.Contains(h.Colorspace, "alpha"):
		rd.chromaW, rd.chromaH = h.Width, h.Height
	case h.Colorspace == "mono":
	default:
		return nil, fmt.Errorf("y4m: unsupported colorspace %q", h.Colorspace)
	}
	rd.frameSize = h.Width*h.Height + 2*rd.chromaW*rd.chromaH
	return rd, nil
}

// Header returns the parsed stream header.
func (r *Reader) Header() Header { return r.header }

// FrameSize is the number of payload bytes per frame.
func (r *Reader) FrameSize() int { return r.frameSize }

// ReadFrame reads the next frame. The returned planes alias buf when it is
// large enough; pass nil to allocate. Returns io.EOF at a clean end of stream.
func (r *Reader) ReadFrame(buf []byte) (*Frame, error) {
	line, err := readLine(r.r)
	if err != nil {
		return nil, err
	}
	if line != frameMagic && !strings.HasPrefix(line, frameMagic+" ") {
		return nil, fmt.Errorf("%w: expected FRAME, got %q", ErrBadHeader, truncate(line))
	}

	if cap(buf) < r.frameSize {
		buf = make([]byte, r.frameSize)
	}
	buf = buf[:r.frameSize]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("y4m: short frame: %w", err)
	}

	w, h := r.header.Width, r.header.Height
	ySize := w * h
	cSize := r.chromaW * r.chromaH
	return &Frame{
		Width:    w,
		Height:   h,
		Y:        buf[:ySize],
		U:        buf[ySize : ySize+cSize],
		V:        buf[ySize+cSize : ySize+2*cSize],
		StrideY:  w,
		StrideUV: r.chromaW,
	}, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return "", io.EOF
		}
		if errors.Is(err, bufio.ErrBufferFull) || len(line) > maxLine {
			return "", fmt.Errorf("%w: line too long", ErrBadHeader)
		}
		return "", fmt.Errorf("y4m: %w", io.ErrUnexpectedEOF)
	}
	return string(bytes.TrimSuffix(line, []byte{'\n'})), nil
}

func parseHeader(line string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != streamMagic {
		return Header{}, fmt.Errorf("%w: missing %s magic", ErrBadHeader, streamMagic)
	}

	h := Header{Colorspace: "420jpeg"}
	for _, f := range fields[1:] {
		tag, value := f[0], f[1:]
		var err error
		switch tag {
		case 'W':
			h.Width, err = strconv.Atoi(value)
		case 'H':
			h.Height, err = strconv.Atoi(value)
		case 'F':
			h.Framerate, err = parseRatio(value)
		case 'I':
			h.Interlace = value
		case 'C':
			h.Colorspace = value
		}
		if err != nil {
			return Header{}, fmt.Errorf("%w: field %q: %v", ErrBadHeader, f, err)
		}
	}

	if h.Width <= 0 || h.Height <= 0 || h.Width > MaxDimension || h.Height > MaxDimension {
		return Header{}, fmt.Errorf("%w: invalid size %dx%d", ErrBadHeader, h.Width, h.Height)
	}
	return h, nil
}

func parseRatio(s string) (codec.Rational, error) {
	num, den, ok := strings.Cut(s, ":")
	if !ok {
		return codec.Rational{}, errors.New("expected num:den")
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return codec.Rational{}, err
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return codec.Rational{}, err
	}
	return codec.Rational{Num: n, Den: d}, nil
}

func truncate(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}
