// Package result implements the bracketed result cell format: the compact
// string that is both the table cell text shown for a station and the record
// the rename path parses later. The string form is the only persisted shape of
// a probe outcome, so Encode and Parse must round-trip live results exactly.
package result

import (
	"fmt"
	"strconv"
	"strings"

	regexp "github.com/grafana/regexp"

	"radio-manager/work/types"
)

// Dead reason tokens as they appear inside the brackets. DoubleMarker is
// reserved for the duplicate finder; the prober never emits it and Parse never
// treats it as live. It must not collide with any reason token.
const (
	TokenError     = "Error"
	TokenConnError = "ConnError"
	TokenTimeout   = "Timeout"

	DoubleMarker = "[DOUBLE]"
)

var (
	// Current format: [OK][STREAM][name][codec][bitrate][genre] or
	// [OK][PL: n][name][codec][bitrate][genre].
	reTagged = regexp.MustCompile(`^\[OK\]\[(STREAM|PL: \d+)\]\[([^\]]+)\]\[([^\]]+)\]\[([^\]]+)\]\[([^\]]+)\]$`)

	// Legacy format without the STREAM/PL tag, still accepted on read.
	reLegacy = regexp.MustCompile(`^\[OK\]\[([^\]]+)\]\[([^\]]+)\]\[([^\]]+)\]\[([^\]]+)\]$`)
)

// Encode renders a ProbeResult as its cell string.
func Encode(r types.ProbeResult) string {
	switch r.Kind {
	case types.ResultLiveStream:
		return fmt.Sprintf("[OK][STREAM][%s][%s][%s][%s]",
			orUnknown(r.RealName), orUnknown(r.Codec), orUnknown(r.Bitrate), orUnknown(r.Genre))
	case types.ResultLivePlaylist:
		return fmt.Sprintf("[OK][PL: %d][%s][%s][%s][%s]",
			r.EntryCount, orUnknown(r.RealName), orUnknown(r.Codec), orUnknown(r.Bitrate), orUnknown(r.Genre))
	default:
		return "[" + reasonToken(r) + "]"
	}
}

// DeadToken returns the bare reason token of a dead result, e.g. "404" or
// "Timeout". Used by the remove-inactive flag matching.
func DeadToken(r types.ProbeResult) string {
	return reasonToken(r)
}

func reasonToken(r types.ProbeResult) string {
	switch r.Reason {
	case types.ReasonHTTPStatus:
		return strconv.Itoa(r.StatusCode)
	case types.ReasonConnError:
		return TokenConnError
	case types.ReasonTimeout:
		return TokenTimeout
	default:
		return TokenError
	}
}

func orUnknown(s string) string {
	if s == "" {
		return types.Unknown
	}
	return s
}

// Parse extracts the structured fields from a live result cell. It recognizes
// the tagged format and the legacy untagged one; anything else (dead cells,
// the duplicate marker, arbitrary text) yields (nil, false) so the caller can
// skip the record. The Unknown sentinel maps to an empty RealName and to the
// literal "N/A" for codec, bitrate and genre; a codec that still looks like a
// MIME type keeps only the part after the last slash, uppercased.
func Parse(text string) (*types.StructuredInfo, bool) {
	var realName, codec, bitrate, genre string

	if m := reTagged.FindStringSubmatch(text); m != nil {
		realName, codec, bitrate, genre = m[2], m[3], m[4], m[5]
	} else if m := reLegacy.FindStringSubmatch(text); m != nil {
		realName, codec, bitrate, genre = m[1], m[2], m[3], m[4]
	} else {
		return nil, false
	}

	info := &types.StructuredInfo{
		RealName: realName,
		Codec:    codec,
		Bitrate:  bitrate,
		Genre:    genre,
	}
	if info.RealName == types.Unknown {
		info.RealName = ""
	}
	if info.Codec == types.Unknown {
		info.Codec = "N/A"
	}
	if info.Bitrate == types.Unknown {
		info.Bitrate = "N/A"
	}
	if info.Genre == types.Unknown {
		info.Genre = "N/A"
	}

	// ICY servers commonly hand back the raw content-type as the codec.
	if idx := strings.LastIndex(info.Codec, "/"); idx != -1 {
		info.Codec = strings.ToUpper(info.Codec[idx+1:])
	}

	return info, true
}

// IsDeadCell reports whether the cell text represents a dead classification
// for one of the given reason tokens (e.g. "404", "Timeout"). Tokens are
// matched in their bracketed form so that a station name containing the bare
// word never triggers a deletion.
func IsDeadCell(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.HasPrefix(text, "["+tok+"]") {
			return true
		}
	}
	return false
}
