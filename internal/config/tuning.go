package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Tuning holds the encoder settings that can change while encoding.
// Zero leaves the current value in place.
type Tuning struct {
	Kbs int `toml:"kbs"`
	FPS int `toml:"fps"`
}

// Reconfigurer is an encoder that accepts live rate changes.
type Reconfigurer interface {
	SetBitrate(kbs int) error
	SetFramerate(fps int) error
}

// LoadTuning reads a tuning file such as
//
//	kbs = 6000
//	fps = 60
func LoadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}

	var t Tuning
	if err := toml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	if t.Kbs < 0 || t.FPS < 0 {
		return Tuning{}, fmt.Errorf("invalid tuning kbs=%d fps=%d", t.Kbs, t.FPS)
	}
	return t, nil
}

// ApplyTuning pushes the non-zero fields of t to r.
func ApplyTuning(r Reconfigurer, t Tuning) error {
	var errs []error
	if t.Kbs > 0 {
		if err := r.SetBitrate(t.Kbs); err != nil {
			errs = append(errs, fmt.Errorf("set bitrate %d: %w", t.Kbs, err))
		}
	}
	if t.FPS > 0 {
		if err := r.SetFramerate(t.FPS); err != nil {
			errs = append(errs, fmt.Errorf("set framerate %d: %w", t.FPS, err))
		}
	}
	return errors.Join(errs...)
}
