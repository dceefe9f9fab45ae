package prober

import (
	"strings"

	"radio-manager/work/types"
)

// formatNames maps common stream content types to the short names shown in
// result cells.
var formatNames = map[string]string{
	"audio/mpeg":                    "MP3",
	"audio/aac":                     "AAC",
	"audio/aacp":                    "AAC+",
	"audio/mp4":                     "MP4",
	"audio/flac":                    "FLAC",
	"audio/ogg":                     "OGG",
	"audio/wav":                     "WAV",
	"audio/x-wav":                   "WAV",
	"audio/vnd.wav":                 "WAV",
	"audio/x-mpegurl":               "M3U",
	"audio/scpls":                   "PLS",
	"application/vnd.apple.mpegurl": "M3U8",
	"application/x-mpegurl":         "M3U",
	"application/pls+xml":           "PLS",
	"application/xspf+xml":          "XSPF",
}

// NormalizeFormat converts a MIME content type into a short display format.
// Unmapped types fall back to the uppercased subtype with any parameters
// stripped; a missing type yields the Unknown sentinel.
func NormalizeFormat(contentType string) string {
	if contentType == "" || contentType == types.Unknown {
		return types.Unknown
	}

	ct, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	ct = strings.TrimSpace(ct)
	if name, ok := formatNames[ct]; ok {
		return name
	}

	if strings.Contains(ct, "/") {
		ct = ct[strings.LastIndex(ct, "/")+1:]
	}
	return strings.ToUpper(strings.TrimPrefix(ct, "x-"))
}
