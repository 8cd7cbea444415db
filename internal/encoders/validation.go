package encoders

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smazurov/hwcodec/internal/encoders/validation"
	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/metrics"
)

// Prober opens the named encoder on an adapter and encodes a test frame.
// A nil error means the encoder works.
type Prober func(ctx context.Context, encoderName string, luid int64) error

// Validator runs test encodes for every hardware encoder compiled into FFmpeg.
type Validator struct {
	binary     string
	probe      Prober
	registry   *validation.ValidatorRegistry
	luid       int64
	resolution string
	logger     logging.Logger
}

// NewValidator creates a Validator that tests encoders with probe.
func NewValidator(binary string, probe Prober) *Validator {
	return &Validator{
		binary:     binary,
		probe:      probe,
		registry:   CreateValidatorRegistry(),
		resolution: "1280x720",
		logger:     logging.GetLogger("encoders"),
	}
}

// SetLUID selects the adapter the test encodes run on.
func (v *Validator) SetLUID(luid int64) {
	v.luid = luid
}

// SetResolution records the resolution the prober encodes at.
func (v *Validator) SetResolution(resolution string) {
	v.resolution = resolution
}

// ValidateEncoders tests every compiled encoder that has a vendor validator.
func (v *Validator) ValidateEncoders(ctx context.Context) (*ValidationResults, error) {
	list, err := GetFFmpegEncoders(ctx, v.binary)
	if err != nil {
		return nil, err
	}

	results := v.validate(ctx, list.Names())
	results.FFmpegVersion = GetFFmpegVersion(ctx, v.binary)
	return results, nil
}

func (v *Validator) validate(ctx context.Context, compiled []string) *ValidationResults {
	results := &ValidationResults{
		Timestamp:      time.Now().Format(time.RFC3339),
		FFmpegVersion:  "unknown",
		TestResolution: v.resolution,
		LUID:           v.luid,
		H264:           CodecValidation{Working: []string{}, Failed: []string{}},
		H265:           CodecValidation{Working: []string{}, Failed: []string{}},
	}

	available := v.registry.GetAvailableValidators(compiled)
	v.logger.Info("Found validators with compiled encoders", "count", len(available))

	for _, validator := range available {
		v.logger.Debug("Validating vendor", "description", validator.GetDescription())

		for _, encoderName := range v.registry.GetCompiledEncoders(validator, compiled) {
			if ctx.Err() != nil {
				return results
			}

			target := codecResults(results, encoderName)
			if target == nil {
				continue
			}

			err := v.probe(ctx, encoderName, v.luid)
			metrics.SetProbeResult("encode", encoderName, err == nil)
			if err != nil {
				v.logger.Info("Encoder failed", "encoder", encoderName, "error", err)
				target.Failed = append(target.Failed, encoderName)
				continue
			}
			v.logger.Info("Encoder working", "encoder", encoderName)
			target.Working = append(target.Working, encoderName)
		}
	}

	return results
}

func codecResults(results *ValidationResults, encoderName string) *CodecValidation {
	switch {
	case strings.HasPrefix(encoderName, "h264"):
		return &results.H264
	case strings.HasPrefix(encoderName, "hevc"):
		return &results.H265
	}
	return nil
}

// PrintValidationSummary prints a summary of validation results
func PrintValidationSummary(w io.Writer, results *ValidationResults) {
	fmt.Fprintln(w, "\n=== VALIDATION SUMMARY ===")

	fmt.Fprintf(w, "H.264 encoders working: %d\n", len(results.H264.Working))
	if len(results.H264.Working) > 0 {
		fmt.Fprintf(w, "  Working: %s\n", strings.Join(results.H264.Working, ", "))
	}

	fmt.Fprintf(w, "H.265 encoders working: %d\n", len(results.H265.Working))
	if len(results.H265.Working) > 0 {
		fmt.Fprintf(w, "  Working: %s\n", strings.Join(results.H265.Working, ", "))
	}

	if len(results.H264.Failed) > 0 || len(results.H265.Failed) > 0 {
		fmt.Fprintln(w, "\nFailed encoders:")
		if len(results.H264.Failed) > 0 {
			fmt.Fprintf(w, "  H.264: %s\n", strings.Join(results.H264.Failed, ", "))
		}
		if len(results.H265.Failed) > 0 {
			fmt.Fprintf(w, "  H.265: %s\n", strings.Join(results.H265.Failed, ", "))
		}
	}
}
