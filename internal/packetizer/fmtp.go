package packetizer

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/AlexxIT/go2rtc/pkg/core"
)

// fmtp builds the SDP format parameters for the cached parameter sets.
func (s *parameterSets) fmtp(codecName string) string {
	if codecName == core.CodecH265 {
		var parts []string
		for _, p := range []struct {
			key string
			nal []byte
		}{{"sprop-vps", s.vps}, {"sprop-sps", s.sps}, {"sprop-pps", s.pps}} {
			if len(p.nal) > 0 {
				parts = append(parts, p.key+"="+base64.StdEncoding.EncodeToString(p.nal))
			}
		}
		return strings.Join(parts, ";")
	}

	parts := []string{"packetization-mode=1"}
	if len(s.sps) >= 4 {
		parts = append(parts, "profile-level-id="+hex.EncodeToString(s.sps[1:4]))
	}
	if len(s.sps) > 0 && len(s.pps) > 0 {
		parts = append(parts, "sprop-parameter-sets="+
			base64.StdEncoding.EncodeToString(s.sps)+","+base64.StdEncoding.EncodeToString(s.pps))
	}
	return strings.Join(parts, ";")
}

// parseSpsPps extracts SPS and PPS from an H.264 fmtp line.
func parseSpsPps(fmtpLine string) (sps, pps []byte) {
	value := fmtpValue(fmtpLine, "sprop-parameter-sets")
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}

	sps, _ = base64.StdEncoding.DecodeString(parts[0])
	pps, _ = base64.StdEncoding.DecodeString(parts[1])
	return sps, pps
}

// parseH265Sprop extracts VPS, SPS and PPS from an H.265 fmtp line.
func parseH265Sprop(fmtpLine string) (vps, sps, pps []byte) {
	vps, _ = base64.StdEncoding.DecodeString(fmtpValue(fmtpLine, "sprop-vps"))
	sps, _ = base64.StdEncoding.DecodeString(fmtpValue(fmtpLine, "sprop-sps"))
	pps, _ = base64.StdEncoding.DecodeString(fmtpValue(fmtpLine, "sprop-pps"))
	return vps, sps, pps
}

func fmtpValue(fmtpLine, key string) string {
	for _, param := range strings.Split(fmtpLine, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}
