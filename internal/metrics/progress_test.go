package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func f(v float64) *float64 { return &v }

func TestProgressCache(t *testing.T) {
	id := "test-instance-1"
	DeleteProgress(id)

	if _, ok := GetProgress(id); ok {
		t.Error("expected no progress for unknown instance")
	}

	SetProgress(id, Progress{FPS: f(30), Dropped: f(5)})
	SetProgress(id, Progress{Duplicated: f(2), Speed: f(1.5)})

	p, ok := GetProgress(id)
	if !ok {
		t.Fatal("expected progress")
	}
	if *p.FPS != 30 || *p.Dropped != 5 || *p.Duplicated != 2 || *p.Speed != 1.5 {
		t.Errorf("unexpected progress fps=%v dropped=%v dup=%v speed=%v", *p.FPS, *p.Dropped, *p.Duplicated, *p.Speed)
	}
	if got := testutil.ToFloat64(progressFPS.WithLabelValues(id)); got != 30 {
		t.Errorf("fps gauge = %v, want 30", got)
	}

	// returned copy is independent
	*p.FPS = 999
	p2, _ := GetProgress(id)
	if *p2.FPS != 30 {
		t.Errorf("cache was modified, FPS = %v", *p2.FPS)
	}

	DeleteProgress(id)
	if _, ok := GetProgress(id); ok {
		t.Error("expected no progress after delete")
	}
}

func TestProgressConcurrency(t *testing.T) {
	id := "concurrent-instance"
	DeleteProgress(id)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(val float64) {
			defer wg.Done()
			SetProgress(id, Progress{FPS: &val})
			_, _ = GetProgress(id)
		}(float64(i))
	}
	wg.Wait()

	if _, ok := GetProgress(id); !ok {
		t.Error("expected progress after concurrent access")
	}
	DeleteProgress(id)
}
