package validation

import "strings"

// AmfValidator validates AMD AMF encoders
type AmfValidator struct{}

// NewAmfValidator creates a new AMF validator
func NewAmfValidator() *AmfValidator {
	return &AmfValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name
func (v *AmfValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "amf")
}

// GetEncoderNames returns the list of AMF encoder names
func (v *AmfValidator) GetEncoderNames() []string {
	return []string{"h264_amf", "hevc_amf"}
}

// GetDescription returns a description of this validator
func (v *AmfValidator) GetDescription() string {
	return "AMD AMF - Hardware acceleration on AMD GPUs"
}

// GetProductionSettings returns production settings for AMF encoders.
// AMF picks its adapter itself.
func (v *AmfValidator) GetProductionSettings(encoderName string, _ int64) (*EncoderSettings, error) {
	if !v.CanValidate(encoderName) {
		return nil, unsupported("AMF", encoderName)
	}
	return &EncoderSettings{GPU: -1}, nil
}
