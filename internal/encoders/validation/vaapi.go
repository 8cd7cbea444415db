package validation

import "strings"

// VaapiValidator validates VAAPI encoders
type VaapiValidator struct{}

// NewVaapiValidator creates a new VAAPI validator
func NewVaapiValidator() *VaapiValidator {
	return &VaapiValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name
func (v *VaapiValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "vaapi")
}

// GetEncoderNames returns the list of VAAPI encoder names
func (v *VaapiValidator) GetEncoderNames() []string {
	return []string{"h264_vaapi", "hevc_vaapi"}
}

// GetDescription returns a description of this validator
func (v *VaapiValidator) GetDescription() string {
	return "VAAPI (Video Acceleration API) - Intel/AMD hardware acceleration on Linux"
}

// GetProductionSettings returns production settings for VAAPI encoders
func (v *VaapiValidator) GetProductionSettings(encoderName string, luid int64) (*EncoderSettings, error) {
	if !v.CanValidate(encoderName) {
		return nil, unsupported("VAAPI", encoderName)
	}
	return &EncoderSettings{
		GlobalArgs:   []string{"-vaapi_device", RenderNode(luid)},
		VideoFilters: "format=nv12,hwupload",
		GPU:          -1,
	}, nil
}
