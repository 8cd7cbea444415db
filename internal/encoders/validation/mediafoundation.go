package validation

import "strings"

// MediaFoundationValidator validates Windows Media Foundation encoders.
type MediaFoundationValidator struct{}

// NewMediaFoundationValidator creates a new Media Foundation validator
func NewMediaFoundationValidator() *MediaFoundationValidator {
	return &MediaFoundationValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name
func (v *MediaFoundationValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "_mf")
}

// GetEncoderNames returns the list of Media Foundation encoder names
func (v *MediaFoundationValidator) GetEncoderNames() []string {
	return []string{"h264_mf", "hevc_mf"}
}

// GetDescription returns a description of this validator
func (v *MediaFoundationValidator) GetDescription() string {
	return "Media Foundation - Vendor MFTs on Windows"
}

// GetProductionSettings returns production settings for Media Foundation
// encoders. Hardware use is forced through the tuning options.
func (v *MediaFoundationValidator) GetProductionSettings(encoderName string, _ int64) (*EncoderSettings, error) {
	if !v.CanValidate(encoderName) {
		return nil, unsupported("Media Foundation", encoderName)
	}
	return &EncoderSettings{GPU: -1}, nil
}
