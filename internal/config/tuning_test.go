package config

import (
	"errors"
	"testing"
)

type fakeEncoder struct {
	kbs, fps int
	err      error
}

func (f *fakeEncoder) SetBitrate(kbs int) error {
	f.kbs = kbs
	return f.err
}

func (f *fakeEncoder) SetFramerate(fps int) error {
	f.fps = fps
	return f.err
}

func TestLoadTuning(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Tuning
		wantErr bool
	}{
		{"both", "kbs = 6000\nfps = 60\n", Tuning{Kbs: 6000, FPS: 60}, false},
		{"bitrate only", "kbs = 2500\n", Tuning{Kbs: 2500}, false},
		{"negative", "kbs = -1\n", Tuning{}, true},
		{"malformed", "kbs = \n", Tuning{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadTuning(writeFile(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadTuning() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LoadTuning() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApplyTuning(t *testing.T) {
	enc := &fakeEncoder{}
	if err := ApplyTuning(enc, Tuning{FPS: 25}); err != nil {
		t.Fatal(err)
	}
	if enc.kbs != 0 || enc.fps != 25 {
		t.Errorf("got kbs=%d fps=%d", enc.kbs, enc.fps)
	}

	sentinel := errors.New("closed")
	enc = &fakeEncoder{err: sentinel}
	if err := ApplyTuning(enc, Tuning{Kbs: 1000, FPS: 30}); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
