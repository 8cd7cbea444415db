// Package validation holds per-vendor encoder profiles: which FFmpeg encoders
// a vendor provides and the device setup each one needs on a given adapter.
package validation

import (
	"fmt"
	"slices"
	"strings"
)

// renderNodeBase is the minor number of the first DRM render node.
const renderNodeBase = 128

// RenderNode returns the DRM render node for an adapter LUID.
func RenderNode(luid int64) string {
	return fmt.Sprintf("/dev/dri/renderD%d", renderNodeBase+luid)
}

// EncoderSettings contains the FFmpeg settings an encoder needs beyond its
// vendor tuning options.
type EncoderSettings struct {
	GlobalArgs   []string `toml:"global_args" json:"global_args"`     // device setup (-vaapi_device, -init_hw_device)
	VideoFilters string   `toml:"video_filters" json:"video_filters"` // upload chain (format=nv12,hwupload)
	GPU          int      `toml:"gpu" json:"gpu"`                     // GPU index for SetGPU, -1 when unused
}

// EncoderValidator describes one vendor's encoders.
type EncoderValidator interface {
	// CanValidate returns true if this validator can handle the given encoder name
	CanValidate(encoderName string) bool

	// GetEncoderNames returns a list of encoder names this validator handles
	GetEncoderNames() []string

	// GetDescription returns a human-readable description of this validator
	GetDescription() string

	// GetProductionSettings returns the settings used to open the encoder on
	// the adapter identified by luid. Probes use the same settings.
	GetProductionSettings(encoderName string, luid int64) (*EncoderSettings, error)
}

// ValidatorRegistry holds all registered validators in priority order.
type ValidatorRegistry struct {
	validators []EncoderValidator
}

// NewValidatorRegistry creates a new validator registry.
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{
		validators: make([]EncoderValidator, 0),
	}
}

// DefaultRegistry returns a registry with every vendor validator.
func DefaultRegistry() *ValidatorRegistry {
	r := NewValidatorRegistry()
	r.Register(NewNvencValidator())
	r.Register(NewAmfValidator())
	r.Register(NewQsvValidator())
	r.Register(NewVaapiValidator())
	r.Register(NewMediaFoundationValidator())
	return r
}

// Register adds a validator to the registry.
func (r *ValidatorRegistry) Register(validator EncoderValidator) {
	r.validators = append(r.validators, validator)
}

// FindValidator finds the appropriate validator for the given encoder name.
func (r *ValidatorRegistry) FindValidator(encoderName string) EncoderValidator {
	for _, validator := range r.validators {
		if validator.CanValidate(encoderName) {
			return validator
		}
	}
	return nil
}

// GetProductionSettings resolves settings through the matching validator.
func (r *ValidatorRegistry) GetProductionSettings(encoderName string, luid int64) (*EncoderSettings, error) {
	v := r.FindValidator(encoderName)
	if v == nil {
		return nil, fmt.Errorf("no validator found for encoder: %s", encoderName)
	}
	return v.GetProductionSettings(encoderName, luid)
}

// GetAllValidators returns all registered validators.
func (r *ValidatorRegistry) GetAllValidators() []EncoderValidator {
	return r.validators
}

// GetAvailableValidators returns validators with at least one encoder in compiled.
func (r *ValidatorRegistry) GetAvailableValidators(compiled []string) []EncoderValidator {
	available := make([]EncoderValidator, 0)
	for _, validator := range r.validators {
		if len(r.GetCompiledEncoders(validator, compiled)) > 0 {
			available = append(available, validator)
		}
	}
	return available
}

// GetCompiledEncoders returns the validator's encoder names present in compiled.
func (r *ValidatorRegistry) GetCompiledEncoders(validator EncoderValidator, compiled []string) []string {
	names := make([]string, 0)
	for _, name := range validator.GetEncoderNames() {
		if slices.Contains(compiled, name) {
			names = append(names, name)
		}
	}
	return names
}

// EncoderNames returns every known encoder name for a codec prefix
// ("h264" or "hevc"), in registry priority order.
func (r *ValidatorRegistry) EncoderNames(prefix string) []string {
	var names []string
	for _, validator := range r.validators {
		for _, name := range validator.GetEncoderNames() {
			if strings.HasPrefix(name, prefix+"_") {
				names = append(names, name)
			}
		}
	}
	return names
}

func unsupported(validator, encoderName string) error {
	return fmt.Errorf("encoder %s is not supported by %s validator", encoderName, validator)
}
