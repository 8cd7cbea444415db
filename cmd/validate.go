package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/smazurov/hwcodec/internal/encoders"
	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/logging"
)

// CreateValidateEncodersCmd creates the validate-encoders command. It test
// encodes with every compiled hardware encoder and saves the outcome as TOML.
func CreateValidateEncodersCmd() *cobra.Command {
	var (
		output string
		luid   int64
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "validate-encoders",
		Short: "Validate hardware encoder availability",
		Long: `Tests every hardware H.264 and H.265 encoder compiled into ffmpeg with a short ` +
			`encode on the chosen adapter and records which ones actually work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger := logging.GetLogger("encoders")
			validator := encoders.NewValidator(hwcodec.FFmpegBinary(), hwcodec.ProbeEncoder)
			validator.SetLUID(luid)

			logger.Info("Validating encoders", "luid", luid, "output", output)
			results, err := validator.ValidateEncoders(ctx)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			if err := encoders.SaveValidationResults(output, results); err != nil {
				return err
			}

			if !quiet {
				encoders.PrintValidationSummary(cmd.OutOrStdout(), results)
			}
			logger.Info("Validation results saved", "path", output,
				"h264_working", len(results.H264.Working), "h265_working", len(results.H265.Working))
			return ctxErr(ctx)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "validated_encoders.toml", "Output file for validation results")
	cmd.Flags().Int64Var(&luid, "luid", 0, "Adapter to validate on (render node offset)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the summary")
	return cmd
}

// ctxErr reports an interrupt as an error so the exit status reflects it.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return nil
}
