package hwcodec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/smazurov/hwcodec/internal/events"
	"github.com/smazurov/hwcodec/internal/ffmpeg"
	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/metrics"
	"github.com/smazurov/hwcodec/internal/process"
	"github.com/smazurov/hwcodec/internal/y4m"
)

// DecodeCallback receives one decoded frame on the decoder's output goroutine.
type DecodeCallback func(frame DecodeFrame)

// buildDecodeCommand is replaced in tests.
var buildDecodeCommand = ffmpeg.BuildDecodeCommand

// Decoder feeds Annex-B packets to one FFmpeg decoder subprocess.
// Decoded frames do not map one to one onto packets, so each frame goes to
// the callback of the most recent Decode call.
type Decoder struct {
	id      string
	ctx     DecodeContext
	hwaccel string
	logger  logging.Logger

	mu     sync.Mutex
	proc   *process.Process
	cancel context.CancelFunc
	closed bool

	cbMu    sync.Mutex
	cb      DecodeCallback
	decoded uint64
}

// NewDecoder starts a decoder subprocess for dc.
func NewDecoder(dc DecodeContext) (*Decoder, error) {
	if err := dc.validate(); err != nil {
		return nil, err
	}

	params := decodeParams(&dc)
	command, err := buildDecodeCommand(params)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		id:      nextID("dec"),
		ctx:     dc,
		hwaccel: params.HWAccel,
	}
	d.logger = logging.GetLogger("hwcodec").With("decoder", dc.DataFormat.String(), "id", d.id)

	ctx, cancel := context.WithCancel(context.Background())
	proc := newProcess(d.id, command, d.logger)
	if err := proc.Start(ctx, d.readFrames); err != nil {
		cancel()
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	d.proc = proc
	d.cancel = cancel

	metrics.DecoderOpened()
	publish(events.DecoderCreatedEvent{
		ID:        d.id,
		Format:    dc.DataFormat.String(),
		HWAccel:   params.HWAccel,
		LUID:      dc.LUID,
		Timestamp: timestamp(),
	})
	d.logger.Info("Decoder created", "hwaccel", params.HWAccel, "luid", dc.LUID)
	return d, nil
}

// ID returns the decoder instance identifier.
func (d *Decoder) ID() string { return d.id }

// readFrames parses the Y4M output until EOF.
func (d *Decoder) readFrames(r io.Reader) error {
	reader, err := y4m.NewReader(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	format := d.ctx.DataFormat.String()
	for {
		f, err := reader.ReadFrame(nil)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		metrics.FrameDecoded(format)

		d.cbMu.Lock()
		cb := d.cb
		d.decoded++
		d.cbMu.Unlock()

		if cb != nil {
			cb(DecodeFrame{
				Data:   f.Y[:reader.FrameSize()],
				Width:  f.Width,
				Height: f.Height,
			})
		}
	}
}

// Decode submits one Annex-B packet. Frames it completes are passed to cb
// from the output goroutine.
func (d *Decoder) Decode(packet []byte, cb DecodeCallback) error {
	if len(packet) == 0 {
		return fmt.Errorf("%w: empty packet", ErrInvalidParam)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	d.cbMu.Lock()
	d.cb = cb
	d.cbMu.Unlock()

	if _, err := d.proc.Write(packet); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Close flushes the decoder and stops the subprocess. Remaining frames are
// delivered before Close returns.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.closed = true

	code := drain(d.proc)
	d.cancel()

	d.cbMu.Lock()
	decoded := d.decoded
	d.cbMu.Unlock()

	metrics.DecoderClosed()
	publish(events.DecoderClosedEvent{
		ID:        d.id,
		Frames:    decoded,
		Timestamp: timestamp(),
	})
	d.logger.Info("Decoder closed", "frames", decoded, "exit_code", code)
	return nil
}
