package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/smazurov/hwcodec/internal/annexb"
	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/logging"
)

// CreateDecodeCmd creates the decode command. It reads an Annex-B elementary
// stream and writes raw planar I420 frames.
func CreateDecodeCmd() *cobra.Command {
	var (
		input, output string
		driver, api   string
		format        string
		luid          int64
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode an Annex-B stream with a hardware decoder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			logger := logging.GetLogger("hwcodec")

			dc := hwcodec.DecodeContext{LUID: luid}
			var err error
			if dc.Driver, err = hwcodec.ParseDriver(driver); err != nil {
				return err
			}
			if dc.API, err = hwcodec.ParseAPI(api); err != nil {
				return err
			}
			if dc.DataFormat, err = hwcodec.ParseDataFormat(format); err != nil {
				return err
			}

			in, err := openInput(input)
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(output)
			if err != nil {
				return err
			}

			dec, err := hwcodec.NewDecoder(dc)
			if err != nil {
				out.Close()
				return err
			}

			w := &frameWriter{w: out}
			units, feedErr := feedAccessUnits(ctx.Done(), in, dc.DataFormat, func(au []byte) error {
				return dec.Decode(au, w.write)
			})

			closeErr := dec.Close()
			writeErr := w.err
			if err := out.Close(); err != nil && writeErr == nil {
				writeErr = err
			}
			logger.Info("Decoding finished", "access_units", units, "frames", w.frames)
			return errors.Join(feedErr, closeErr, writeErr, ctxErr(ctx))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "-", "Annex-B input file, - for stdin")
	flags.StringVarP(&output, "output", "o", "-", "Raw I420 output file, - for stdout")
	flags.StringVar(&driver, "driver", "ffmpeg_vram", "Backend family (ffmpeg_vram, mfx)")
	flags.StringVar(&api, "api", "vaapi", "Hardware API (dx11, vaapi, cuda, qsv)")
	flags.StringVar(&format, "format", "h264", "Coded format (h264, hevc)")
	flags.Int64Var(&luid, "luid", 0, "Adapter (render node offset)")
	return cmd
}

// frameWriter appends decoded frames to w, keeping the first error.
type frameWriter struct {
	mu     sync.Mutex
	w      io.Writer
	err    error
	frames int
}

func (fw *frameWriter) write(frame hwcodec.DecodeFrame) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.err != nil {
		return
	}
	if _, err := fw.w.Write(frame.Data); err != nil {
		fw.err = err
		return
	}
	fw.frames++
}

// feedAccessUnits splits r into access units and hands each to submit.
func feedAccessUnits(done <-chan struct{}, r io.Reader, format hwcodec.DataFormat, submit func([]byte) error) (int, error) {
	var (
		units     int
		submitErr error
	)
	splitter, err := annexb.NewSplitter(format.CodecName(), func(au annexb.AccessUnit) {
		if submitErr != nil {
			return
		}
		if err := submit(au.Data); err != nil {
			submitErr = fmt.Errorf("access unit %d: %w", units, err)
			return
		}
		units++
	})
	if err != nil {
		return 0, err
	}

	buf := make([]byte, 64*1024)
	for submitErr == nil {
		select {
		case <-done:
			return units, nil
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			splitter.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			splitter.Flush()
			break
		}
		if err != nil {
			return units, err
		}
	}
	return units, submitErr
}
