package validation

import "strings"

// QsvValidator validates Intel QSV encoders, which also serve the MFX driver.
type QsvValidator struct{}

// NewQsvValidator creates a new QSV validator
func NewQsvValidator() *QsvValidator {
	return &QsvValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name
func (v *QsvValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "qsv")
}

// GetEncoderNames returns the list of QSV encoder names
func (v *QsvValidator) GetEncoderNames() []string {
	return []string{"h264_qsv", "hevc_qsv"}
}

// GetDescription returns a description of this validator
func (v *QsvValidator) GetDescription() string {
	return "Intel Quick Sync Video (QSV) - Hardware acceleration on Intel CPUs/GPUs"
}

// GetProductionSettings opens a QSV device on the adapter's render node and
// uploads frames to it.
func (v *QsvValidator) GetProductionSettings(encoderName string, luid int64) (*EncoderSettings, error) {
	if !v.CanValidate(encoderName) {
		return nil, unsupported("QSV", encoderName)
	}
	return &EncoderSettings{
		GlobalArgs:   []string{"-init_hw_device", "qsv=hw:" + RenderNode(luid), "-filter_hw_device", "hw"},
		VideoFilters: "hwupload=extra_hw_frames=64,format=qsv",
		GPU:          -1,
	}, nil
}
