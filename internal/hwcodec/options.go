package hwcodec

import (
	"sync"
	"time"

	"github.com/smazurov/hwcodec/internal/events"
	"github.com/smazurov/hwcodec/internal/ffmpeg"
)

var (
	optionsMu   sync.RWMutex
	binary      = ffmpeg.DefaultBinary
	bus         *events.Bus
	progressDir string
)

// drainTimeout bounds how long a subprocess may take to flush after its
// input is closed before it is stopped.
var drainTimeout = 5 * time.Second

// SetFFmpegBinary sets the ffmpeg executable used by every encoder, decoder and probe.
func SetFFmpegBinary(path string) {
	optionsMu.Lock()
	defer optionsMu.Unlock()
	if path == "" {
		path = ffmpeg.DefaultBinary
	}
	binary = path
}

// FFmpegBinary returns the configured ffmpeg executable.
func FFmpegBinary() string {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return binary
}

// SetEventBus sets the bus lifecycle and tuning events are published on.
// A nil bus disables publishing.
func SetEventBus(b *events.Bus) {
	optionsMu.Lock()
	defer optionsMu.Unlock()
	bus = b
}

// SetProgressDir enables FFmpeg progress reporting over unix sockets created
// in dir. An empty dir disables it.
func SetProgressDir(dir string) {
	optionsMu.Lock()
	defer optionsMu.Unlock()
	progressDir = dir
}

func publish(ev events.Event) {
	optionsMu.RLock()
	b := bus
	optionsMu.RUnlock()
	b.Publish(ev)
}

func currentProgressDir() string {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return progressDir
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
