package validation

import "strings"

// NvencValidator validates NVIDIA NVENC encoders
type NvencValidator struct{}

// NewNvencValidator creates a new NVENC validator
func NewNvencValidator() *NvencValidator {
	return &NvencValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name
func (v *NvencValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "nvenc")
}

// GetEncoderNames returns the list of NVENC encoder names
func (v *NvencValidator) GetEncoderNames() []string {
	return []string{"h264_nvenc", "hevc_nvenc"}
}

// GetDescription returns a description of this validator
func (v *NvencValidator) GetDescription() string {
	return "NVIDIA NVENC - Hardware acceleration on NVIDIA GPUs"
}

// GetProductionSettings selects the GPU by index; NVENC takes NV12 system
// memory frames directly.
func (v *NvencValidator) GetProductionSettings(encoderName string, luid int64) (*EncoderSettings, error) {
	if !v.CanValidate(encoderName) {
		return nil, unsupported("NVENC", encoderName)
	}
	return &EncoderSettings{GPU: int(luid)}, nil
}
