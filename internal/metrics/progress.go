package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	progressFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Frame rate reported by the FFmpeg subprocess",
	}, []string{"instance"})

	progressDropped = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "dropped_frames",
		Help:      "Frames dropped by the FFmpeg subprocess",
	}, []string{"instance"})

	progressDuplicated = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames",
		Help:      "Frames duplicated by the FFmpeg subprocess",
	}, []string{"instance"})

	progressSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "speed",
		Help:      "Processing speed relative to real time",
	}, []string{"instance"})

	progressCache   = make(map[string]Progress)
	progressCacheMu sync.RWMutex
)

// Progress is one FFmpeg -progress report. Nil fields were absent.
type Progress struct {
	FPS        *float64
	Dropped    *float64
	Duplicated *float64
	Speed      *float64
}

// SetProgress records the fields present in p for a codec instance.
func SetProgress(instance string, p Progress) {
	progressCacheMu.Lock()
	cur := progressCache[instance]
	if p.FPS != nil {
		progressFPS.WithLabelValues(instance).Set(*p.FPS)
		cur.FPS = p.FPS
	}
	if p.Dropped != nil {
		progressDropped.WithLabelValues(instance).Set(*p.Dropped)
		cur.Dropped = p.Dropped
	}
	if p.Duplicated != nil {
		progressDuplicated.WithLabelValues(instance).Set(*p.Duplicated)
		cur.Duplicated = p.Duplicated
	}
	if p.Speed != nil {
		progressSpeed.WithLabelValues(instance).Set(*p.Speed)
		cur.Speed = p.Speed
	}
	progressCache[instance] = cur
	progressCacheMu.Unlock()
}

// GetProgress returns the last progress of an instance.
func GetProgress(instance string) (Progress, bool) {
	progressCacheMu.RLock()
	defer progressCacheMu.RUnlock()
	p, ok := progressCache[instance]
	return p.clone(), ok
}

// DeleteProgress removes all progress metrics of an instance.
func DeleteProgress(instance string) {
	progressFPS.DeleteLabelValues(instance)
	progressDropped.DeleteLabelValues(instance)
	progressDuplicated.DeleteLabelValues(instance)
	progressSpeed.DeleteLabelValues(instance)

	progressCacheMu.Lock()
	delete(progressCache, instance)
	progressCacheMu.Unlock()
}

func (p Progress) clone() Progress {
	dup := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		c := *v
		return &c
	}
	return Progress{
		FPS:        dup(p.FPS),
		Dropped:    dup(p.Dropped),
		Duplicated: dup(p.Duplicated),
		Speed:      dup(p.Speed),
	}
}
