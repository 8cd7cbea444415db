package hwcodec

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/smazurov/hwcodec/internal/ffmpeg"
	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/process"
)

var instanceSeq atomic.Uint64

func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, instanceSeq.Add(1))
}

// newProcess creates an FFmpeg subprocess whose stderr goes to the ffmpeg
// logger at the level FFmpeg reported.
func newProcess(id, command string, logger logging.Logger) *process.Process {
	p := process.New(id, command, logger)
	p.SetLogParser(logging.GetLogger("ffmpeg").With("instance", id), ffmpeg.ParseLogLevel)
	return p
}

// drain closes the subprocess input and waits for it to flush and exit,
// stopping it once the timeout passes. Returns the exit code.
func drain(p *process.Process) int {
	_ = p.CloseInput()
	select {
	case <-p.Done():
		return p.Wait()
	case <-time.After(drainTimeout):
		return p.Stop()
	}
}

func progressSocket(dir, id string) string {
	return filepath.Join(dir, id+".sock")
}
