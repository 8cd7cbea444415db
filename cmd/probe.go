package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/logging"
)

type probeReport struct {
	Encoders []probeEntry `json:"encoders"`
	Decoders []probeEntry `json:"decoders,omitempty"`
}

type probeEntry struct {
	Driver string `json:"driver"`
	API    string `json:"api"`
	Format string `json:"format"`
	LUID   int64  `json:"luid"`
	Name   string `json:"name,omitempty"`
}

// CreateProbeCmd creates the probe command, which lists every encoder and
// decoder configuration that works on this host.
func CreateProbeCmd() *cobra.Command {
	var (
		width, height int
		kbs, fps, gop int
		decoders      bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe available hardware encoders and decoders",
		Long: `Runs a short test encode for every driver, API and format combination on every ` +
			`adapter. With --decoders a software-encoded sample is decoded as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			logger := logging.GetLogger("probe")

			base := hwcodec.EncodeContext{Width: width, Height: height, Kbs: kbs, FPS: fps, GOP: gop}
			var report probeReport
			for _, ec := range hwcodec.AvailableEncoders(ctx, base) {
				report.Encoders = append(report.Encoders, probeEntry{
					Driver: ec.Driver.String(),
					API:    ec.API.String(),
					Format: ec.DataFormat.String(),
					LUID:   ec.LUID,
					Name:   ec.Name,
				})
			}

			if decoders {
				samples := make(map[hwcodec.DataFormat][]byte)
				for _, format := range []hwcodec.DataFormat{hwcodec.H264, hwcodec.H265} {
					sample, err := hwcodec.SampleStream(ctx, format, width, height)
					if err != nil {
						logger.Warn("Skipping decoder probe", "format", format, "error", err)
						continue
					}
					samples[format] = sample
				}
				for _, dc := range hwcodec.AvailableDecoders(ctx, samples) {
					report.Decoders = append(report.Decoders, probeEntry{
						Driver: dc.Driver.String(),
						API:    dc.API.String(),
						Format: dc.DataFormat.String(),
						LUID:   dc.LUID,
					})
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printProbeReport(cmd.OutOrStdout(), &report, decoders)
			}
			return ctxErr(ctx)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&width, "width", 1280, "Probe frame width")
	flags.IntVar(&height, "height", 720, "Probe frame height")
	flags.IntVar(&kbs, "kbs", 4000, "Probe bitrate in kbit/s")
	flags.IntVar(&fps, "fps", 30, "Probe frame rate")
	flags.IntVar(&gop, "gop", 60, "Probe GOP size")
	flags.BoolVar(&decoders, "decoders", false, "Probe decoders too")
	flags.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printProbeReport(w io.Writer, report *probeReport, withDecoders bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tDRIVER\tAPI\tFORMAT\tLUID\tENCODER")
	for _, e := range report.Encoders {
		fmt.Fprintf(tw, "encode\t%s\t%s\t%s\t%d\t%s\n", e.Driver, e.API, e.Format, e.LUID, e.Name)
	}
	for _, d := range report.Decoders {
		fmt.Fprintf(tw, "decode\t%s\t%s\t%s\t%d\t-\n", d.Driver, d.API, d.Format, d.LUID)
	}
	tw.Flush()

	if len(report.Encoders) == 0 {
		fmt.Fprintln(w, "No working hardware encoders found")
	}
	if withDecoders && len(report.Decoders) == 0 {
		fmt.Fprintln(w, "No working hardware decoders found")
	}
}
