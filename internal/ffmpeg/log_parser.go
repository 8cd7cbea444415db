package ffmpeg

import "strings"

// ParseLogLevel splits an ffmpeg stderr line produced with -loglevel level+...
// into its level and message. Lines look like "[warning] msg" or
// "[h264_nvenc @ 0x55d0] [error] msg"; the component prefix is kept in msg.
// Lines without a level are reported as info.
func ParseLogLevel(line string) (level, msg string) {
	if !strings.HasPrefix(line, "[") {
		return "info", line
	}

	bracket, rest, ok := strings.Cut(line[1:], "] ")
	if !ok {
		return "info", line
	}
	if isLogLevel(bracket) {
		return bracket, rest
	}

	component := line[:len(bracket)+3]
	if strings.HasPrefix(rest, "[") {
		if lvl, tail, found := strings.Cut(rest[1:], "] "); found && isLogLevel(lvl) {
			return lvl, component + tail
		}
	}
	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
