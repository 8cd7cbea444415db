package hwcodec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/smazurov/hwcodec/internal/annexb"
	"github.com/smazurov/hwcodec/internal/codec"
	"github.com/smazurov/hwcodec/internal/encoders/validation"
	"github.com/smazurov/hwcodec/internal/events"
	"github.com/smazurov/hwcodec/internal/ffmpeg"
	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/metrics"
	"github.com/smazurov/hwcodec/internal/metrics/collectors"
	"github.com/smazurov/hwcodec/internal/process"
)

// EncodeCallback receives one encoded access unit. It runs on the encoder's
// output goroutine and must not call back into the same Encoder.
type EncodeCallback func(frame EncodeFrame)

// buildEncodeCommand is replaced in tests.
var buildEncodeCommand = ffmpeg.BuildEncodeCommand

var defaultTuning = codec.Tuning{Quality: codec.QualityMedium, RateControl: codec.RateControlCBR}

type pendingFrame struct {
	ms        int64
	cb        EncodeCallback
	submitted time.Time
}

// Encoder feeds raw NV12 frames to one FFmpeg encoder subprocess.
type Encoder struct {
	id        string
	name      string
	settings  *validation.EncoderSettings
	tuning    codec.Tuning
	frameSize int
	logger    logging.Logger

	mu     sync.Mutex
	ctx    EncodeContext
	proc   *process.Process
	cancel context.CancelFunc
	closed bool

	pendingMu sync.Mutex
	pending   []pendingFrame
	produced  uint64

	progress *collectors.ProgressCollector
}

// NewEncoder resolves the FFmpeg encoder for ec, tunes it and starts the
// subprocess.
func NewEncoder(ec EncodeContext) (*Encoder, error) {
	if err := ec.validate(); err != nil {
		return nil, err
	}

	name, err := resolveEncoder(context.Background(), &ec)
	if err != nil {
		return nil, err
	}

	e := &Encoder{
		id:        nextID("enc"),
		name:      name,
		settings:  encoderSettings(name, ec.LUID),
		tuning:    defaultTuning,
		frameSize: NV12FrameSize(ec.Width, ec.Height),
		ctx:       ec,
	}
	if ec.Tuning != nil {
		e.tuning = *ec.Tuning
	}
	if e.settings.GPU >= 0 {
		e.tuning.GPU = e.settings.GPU
	} else {
		e.tuning.GPU = -1
	}
	e.logger = logging.GetLogger("hwcodec").With("encoder", name, "id", e.id)

	if dir := currentProgressDir(); dir != "" {
		e.progress = collectors.NewProgressCollector(progressSocket(dir, e.id), e.id)
		if err := e.progress.Start(context.Background()); err != nil {
			e.logger.Warn("Progress reporting disabled", "error", err)
			e.progress = nil
		}
	}

	if err := e.start(); err != nil {
		e.stopProgress()
		return nil, err
	}

	metrics.EncoderOpened()
	publish(events.EncoderCreatedEvent{
		ID:        e.id,
		Encoder:   name,
		Driver:    ec.Driver.String(),
		LUID:      ec.LUID,
		Width:     ec.Width,
		Height:    ec.Height,
		Kbs:       ec.Kbs,
		FPS:       ec.FPS,
		Timestamp: timestamp(),
	})
	e.logger.Info("Encoder created", "width", ec.Width, "height", ec.Height, "kbs", ec.Kbs, "fps", ec.FPS, "gop", ec.GOP)
	return e, nil
}

// ID returns the encoder instance identifier.
func (e *Encoder) ID() string { return e.id }

// Name returns the FFmpeg encoder name in use.
func (e *Encoder) Name() string { return e.name }

// Context returns the current encode context.
func (e *Encoder) Context() EncodeContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// command builds the FFmpeg command line for the current context.
func (e *Encoder) command() (string, error) {
	cctx := codec.NewContext(e.ctx.Width, e.ctx.Height)
	codec.InitContext(cctx, e.name, e.ctx.Kbs*1000, e.ctx.GOP, e.ctx.FPS)

	opts := ffmpeg.NewArgs()
	if err := tune(opts, e.name, e.tuning); err != nil {
		return "", err
	}

	params := &ffmpeg.EncodeParams{
		Binary:       FFmpegBinary(),
		GlobalArgs:   e.settings.GlobalArgs,
		Encoder:      e.name,
		Context:      cctx,
		Options:      opts,
		VideoFilters: e.settings.VideoFilters,
	}
	if e.progress != nil {
		params.ProgressURL = e.progress.URL()
	}
	return buildEncodeCommand(params)
}

// tune applies the vendor options, reporting a rejected option on the bus.
func tune(s codec.OptionSetter, name string, t codec.Tuning) error {
	err := codec.Tune(s, name, t)
	if err == nil {
		return nil
	}
	var optErr *codec.OptionError
	if errors.As(err, &optErr) {
		metrics.TuningFailed(name, optErr.Vendor, optErr.Key)
		publish(events.TuningFailedEvent{
			Encoder:   name,
			Function:  optErr.Func,
			Vendor:    optErr.Vendor,
			Option:    optErr.Key,
			Error:     optErr.Err.Error(),
			Timestamp: timestamp(),
		})
	}
	return fmt.Errorf("tune %s: %w", name, err)
}

// start launches a subprocess for the current context. Caller holds mu or
// owns e exclusively.
func (e *Encoder) start() error {
	command, err := e.command()
	if err != nil {
		return err
	}

	splitter, err := annexb.NewSplitter(e.ctx.DataFormat.CodecName(), e.deliver)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc := newProcess(e.id, command, e.logger)
	consumer := func(r io.Reader) error {
		buf := make([]byte, 64*1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				splitter.Write(buf[:n])
			}
			if err != nil {
				splitter.Flush()
				return err
			}
		}
	}
	if err := proc.Start(ctx, consumer); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", e.name, err)
	}

	e.proc = proc
	e.cancel = cancel
	return nil
}

// deliver maps an access unit to the oldest pending input frame.
func (e *Encoder) deliver(au annexb.AccessUnit) {
	e.pendingMu.Lock()
	if len(e.pending) == 0 {
		e.pendingMu.Unlock()
		e.logger.Warn("Dropping access unit without pending frame", "size", len(au.Data))
		return
	}
	p := e.pending[0]
	e.pending = e.pending[1:]
	e.produced++
	e.pendingMu.Unlock()

	metrics.AccessUnitProduced(e.name, len(au.Data), au.Key, time.Since(p.submitted))
	if p.cb != nil {
		p.cb(EncodeFrame{Data: au.Data, Key: au.Key, PTS: p.ms})
	}
}

// Encode submits one NV12 frame with its presentation time in milliseconds.
// The access unit it produces is passed to cb later, in submission order.
func (e *Encoder) Encode(frame []byte, ms int64, cb EncodeCallback) error {
	if len(frame) != e.frameSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(frame), e.frameSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.pendingMu.Lock()
	e.pending = append(e.pending, pendingFrame{ms: ms, cb: cb, submitted: time.Now()})
	e.pendingMu.Unlock()

	if _, err := e.proc.Write(frame); err != nil {
		e.pendingMu.Lock()
		if n := len(e.pending); n > 0 {
			e.pending = e.pending[:n-1]
		}
		e.pendingMu.Unlock()
		return fmt.Errorf("encode %s: %w", e.name, err)
	}
	metrics.FrameSubmitted(e.name)
	return nil
}

// SetBitrate changes the target bitrate. Pending frames are flushed and the
// subprocess restarts with the new rate.
func (e *Encoder) SetBitrate(kbs int) error {
	if kbs < 0 {
		return fmt.Errorf("%w: bitrate %d", ErrInvalidParam, kbs)
	}
	return e.reconfigure(func(c *EncodeContext) { c.Kbs = kbs })
}

// SetFramerate changes the frame rate. Pending frames are flushed and the
// subprocess restarts with the new rate.
func (e *Encoder) SetFramerate(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("%w: framerate %d", ErrInvalidParam, fps)
	}
	return e.reconfigure(func(c *EncodeContext) { c.FPS = fps })
}

func (e *Encoder) reconfigure(update func(*EncodeContext)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	prev := e.ctx
	update(&e.ctx)
	if e.ctx == prev {
		return nil
	}

	e.stopLocked()
	if err := e.start(); err != nil {
		e.ctx = prev
		if retryErr := e.start(); retryErr != nil {
			e.closed = true
			e.stopProgress()
			metrics.EncoderClosed()
			e.logger.Error("Encoder lost after failed reconfiguration", "error", retryErr)
		}
		return err
	}

	metrics.EncoderRestarted(e.name)
	publish(events.EncoderReconfiguredEvent{
		ID:        e.id,
		Encoder:   e.name,
		Kbs:       e.ctx.Kbs,
		FPS:       e.ctx.FPS,
		Timestamp: timestamp(),
	})
	e.logger.Info("Encoder reconfigured", "kbs", e.ctx.Kbs, "fps", e.ctx.FPS)
	return nil
}

// stopLocked flushes and stops the running subprocess. Frames the encoder
// swallowed without output are dropped.
func (e *Encoder) stopLocked() int {
	if e.proc == nil {
		return 0
	}
	code := drain(e.proc)
	e.cancel()
	e.proc = nil

	e.pendingMu.Lock()
	if n := len(e.pending); n > 0 {
		e.logger.Debug("Dropping frames without output", "count", n)
	}
	e.pending = nil
	e.pendingMu.Unlock()
	return code
}

func (e *Encoder) stopProgress() {
	if e.progress != nil {
		e.progress.Stop()
		metrics.DeleteProgress(e.id)
	}
}

// Close flushes pending output and stops the subprocess. Callbacks for
// frames still inside the encoder run before Close returns.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.closed = true

	code := e.stopLocked()
	e.stopProgress()

	e.pendingMu.Lock()
	produced := e.produced
	e.pendingMu.Unlock()

	metrics.EncoderClosed()
	publish(events.EncoderClosedEvent{
		ID:        e.id,
		Encoder:   e.name,
		Frames:    produced,
		ExitCode:  code,
		Timestamp: timestamp(),
	})
	e.logger.Info("Encoder closed", "frames", produced, "exit_code", code)
	return nil
}

// blackFrame returns an NV12 frame of video-range black.
func blackFrame(width, height int) []byte {
	luma := width * height
	frame := make([]byte, NV12FrameSize(width, height))
	copy(frame, bytes.Repeat([]byte{16}, luma))
	for i := luma; i < len(frame); i++ {
		frame[i] = 128
	}
	return frame
}
