package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/hwcodec/internal/codec"
	"github.com/smazurov/hwcodec/internal/config"
	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/logging"
)

type encodeFlags struct {
	input, output string
	rtpAddr       string
	payloadType   uint8
	ssrc          uint32
	mtu           uint16
	driver, api   string
	format        string
	encoder       string
	luid          int64
	width, height int
	kbs, fps, gop int
	quality       string
	rateControl   string
	realtime      bool
	tuningFile    string
}

// CreateEncodeCmd creates the encode command. It reads raw NV12 frames and
// writes an Annex-B elementary stream, or RTP packets when --rtp is set.
func CreateEncodeCmd() *cobra.Command {
	var f encodeFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode raw NV12 frames with a hardware encoder",
		Long: `Reads fixed-size NV12 frames from --input and encodes them with the hardware ` +
			`encoder selected by --driver, --api and --format. A tuning file (kbs, fps) is ` +
			`watched and applied to the running encoder.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEncode(cmd, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "-", "NV12 input file, - for stdin")
	flags.StringVarP(&f.output, "output", "o", "-", "Annex-B output file, - for stdout")
	flags.StringVar(&f.rtpAddr, "rtp", "", "Send RTP to this UDP host:port instead of writing a file")
	flags.Uint8Var(&f.payloadType, "payload-type", 96, "RTP payload type")
	flags.Uint32Var(&f.ssrc, "ssrc", 0x4857_4344, "RTP SSRC")
	flags.Uint16Var(&f.mtu, "mtu", 1200, "RTP MTU")
	flags.StringVar(&f.driver, "driver", "ffmpeg_vram", "Backend family (ffmpeg_vram, mfx)")
	flags.StringVar(&f.api, "api", "vaapi", "Hardware API (dx11, vaapi, cuda, qsv)")
	flags.StringVar(&f.format, "format", "h264", "Coded format (h264, hevc)")
	flags.StringVar(&f.encoder, "encoder", "", "Explicit FFmpeg encoder name")
	flags.Int64Var(&f.luid, "luid", 0, "Adapter (render node offset)")
	flags.IntVar(&f.width, "width", 1280, "Frame width")
	flags.IntVar(&f.height, "height", 720, "Frame height")
	flags.IntVar(&f.kbs, "kbs", 4000, "Bitrate in kbit/s")
	flags.IntVar(&f.fps, "fps", 30, "Frame rate")
	flags.IntVar(&f.gop, "gop", 60, "GOP size")
	flags.StringVar(&f.quality, "quality", "medium", "Quality tier (high, medium, low)")
	flags.StringVar(&f.rateControl, "rate-control", "cbr", "Rate control (cbr, vbr)")
	flags.BoolVar(&f.realtime, "realtime", false, "Pace input at the frame rate")
	flags.StringVar(&f.tuningFile, "tuning-file", "", "TOML file with kbs/fps to apply live")
	return cmd
}

func (f *encodeFlags) encodeContext() (hwcodec.EncodeContext, error) {
	driver, err := hwcodec.ParseDriver(f.driver)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	api, err := hwcodec.ParseAPI(f.api)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	format, err := hwcodec.ParseDataFormat(f.format)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	quality, err := codec.ParseQuality(f.quality)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	rc, err := codec.ParseRateControl(f.rateControl)
	if err != nil {
		return hwcodec.EncodeContext{}, err
	}
	return hwcodec.EncodeContext{
		Driver:     driver,
		Name:       f.encoder,
		LUID:       f.luid,
		API:        api,
		DataFormat: format,
		Width:      f.width,
		Height:     f.height,
		Kbs:        f.kbs,
		FPS:        f.fps,
		GOP:        f.gop,
		Tuning:     &codec.Tuning{Quality: quality, RateControl: rc, GPU: -1},
	}, nil
}

func (f *encodeFlags) sink(format hwcodec.DataFormat) (frameSink, error) {
	if f.rtpAddr != "" {
		return newRTPSink(f.rtpAddr, format, f.payloadType, f.ssrc, f.mtu)
	}
	w, err := openOutput(f.output)
	if err != nil {
		return nil, err
	}
	return newAnnexBSink(w), nil
}

func runEncode(cmd *cobra.Command, f *encodeFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	logger := logging.GetLogger("hwcodec")

	ec, err := f.encodeContext()
	if err != nil {
		return err
	}

	in, err := openInput(f.input)
	if err != nil {
		return err
	}
	defer in.Close()

	sink, err := f.sink(ec.DataFormat)
	if err != nil {
		return err
	}

	enc, err := hwcodec.NewEncoder(ec)
	if err != nil {
		sink.Close()
		return err
	}
	logger.Info("Encoding", "encoder", enc.Name(), "input", f.input, "size", fmt.Sprintf("%dx%d", ec.Width, ec.Height))

	if f.tuningFile != "" {
		watcher := config.NewConfigWatcher(filepath.Clean(f.tuningFile), config.LoadTuning, logging.GetLogger("config"))
		watcher.OnReload(func(t config.Tuning) {
			if err := config.ApplyTuning(enc, t); err != nil {
				logger.Warn("Failed to apply tuning", "error", err)
				return
			}
			logger.Info("Tuning applied", "kbs", t.Kbs, "fps", t.FPS)
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("Tuning file not watched", "path", f.tuningFile, "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	frames, encodeErr := feedFrames(ctx.Done(), in, enc, sink, f.realtime)

	closeErr := enc.Close()
	sinkErr := sink.Close()
	if rtp, ok := sink.(*rtpSink); ok {
		logger.Info("RTP stream finished", "packets", rtp.packets, "fmtp", rtp.FmtpLine())
	}
	logger.Info("Encoding finished", "frames", frames)

	return errors.Join(encodeErr, closeErr, sinkErr, ctxErr(ctx))
}

// frameEncoder is the part of *hwcodec.Encoder that feedFrames drives.
type frameEncoder interface {
	Context() hwcodec.EncodeContext
	Encode(frame []byte, ms int64, cb hwcodec.EncodeCallback) error
}

// feedFrames reads NV12 frames until EOF and submits them with presentation
// times derived from the frame rate. The frame rate is re-read on every
// frame so live reconfiguration keeps timestamps monotonic.
func feedFrames(done <-chan struct{}, r io.Reader, enc frameEncoder, sink frameSink, realtime bool) (int, error) {
	ec := enc.Context()
	buf := make([]byte, hwcodec.NV12FrameSize(ec.Width, ec.Height))

	var (
		frames int
		ms     float64
		next   = time.Now()
	)
	for {
		select {
		case <-done:
			return frames, nil
		default:
		}

		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, fmt.Errorf("truncated frame %d", frames)
			}
			return frames, err
		}

		if err := enc.Encode(buf, int64(ms), sink.Write); err != nil {
			return frames, fmt.Errorf("encode frame %d: %w", frames, err)
		}
		frames++

		interval := time.Second / time.Duration(enc.Context().FPS)
		ms += float64(interval) / float64(time.Millisecond)
		if realtime {
			next = next.Add(interval)
			time.Sleep(time.Until(next))
		}
	}
}
