package main

import (
	"context"
	"errors"
	"sync"

	"github.com/smazurov/hwcodec/internal/hwcodec"
	"github.com/smazurov/hwcodec/internal/logging"
)

const (
	statusOK    = 0
	statusError = -1
)

var logger = logging.GetLogger("hwcodec")

// status maps an error onto the integer convention of the C surface.
func status(op string, err error) int {
	if err != nil {
		logger.Debug("Call failed", "op", op, "error", err)
		return statusError
	}
	return statusOK
}

// encodeContext assembles an EncodeContext from the flat constructor
// arguments shared by both driver prefixes.
func encodeContext(driver hwcodec.Driver, luid int64, api, format, width, height, kbs, fps, gop int32) hwcodec.EncodeContext {
	return hwcodec.EncodeContext{
		Driver:     driver,
		LUID:       luid,
		API:        hwcodec.API(api),
		DataFormat: hwcodec.DataFormat(format),
		Width:      int(width),
		Height:     int(height),
		Kbs:        int(kbs),
		FPS:        int(fps),
		GOP:        int(gop),
	}
}

// copyDescs writes at most limit LUIDs through put and returns the count.
func copyDescs(descs []hwcodec.AdapterDesc, limit int, put func(i int, luid int64)) int {
	n := min(len(descs), limit)
	for i := range n {
		put(i, descs[i].LUID)
	}
	return n
}

var (
	supportOnce sync.Once
	support     map[hwcodec.Driver]bool
)

// driverSupported caches DriverSupport for the life of the process.
func driverSupported(driver hwcodec.Driver) bool {
	supportOnce.Do(func() {
		support = make(map[hwcodec.Driver]bool)
		for _, d := range []hwcodec.Driver{hwcodec.DriverFFmpegVRAM, hwcodec.DriverMFX} {
			support[d] = hwcodec.DriverSupport(context.Background(), d)
		}
	})
	return support[driver]
}

var errNilHandle = errors.New("nil handle")
