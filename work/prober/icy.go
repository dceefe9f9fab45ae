package prober

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	regexp "github.com/grafana/regexp"
)

// Servers announcing absurd metadata intervals get skipped; reading megabytes
// of audio just to reach a title is not worth it during a check.
const maxMetaInt = 64 * 1024

var reStreamTitle = regexp.MustCompile(`StreamTitle='([^']*)';`)

// harvestStreamTitle reads up to one ICY metadata block from an open stream
// body and extracts the current StreamTitle. The interval counts from the
// first body byte, so consumed reports how much of the body was already read
// for the HTML sniff.
func harvestStreamTitle(body io.Reader, metaintHeader string, consumed int) (string, bool) {
	metaint, err := strconv.Atoi(strings.TrimSpace(metaintHeader))
	if err != nil || metaint <= 0 || metaint > maxMetaInt {
		return "", false
	}

	skip := int64(metaint - consumed)
	if skip < 0 {
		return "", false
	}
	if _, err := io.CopyN(io.Discard, body, skip); err != nil {
		return "", false
	}

	var sizeByte [1]byte
	if _, err := io.ReadFull(body, sizeByte[:]); err != nil {
		return "", false
	}
	size := int(sizeByte[0]) * 16
	if size == 0 {
		return "", false
	}

	meta := make([]byte, size)
	if _, err := io.ReadFull(body, meta); err != nil {
		return "", false
	}

	m := reStreamTitle.FindSubmatch(bytes.TrimRight(meta, "\x00"))
	if m == nil {
		return "", false
	}

	title := strings.TrimSpace(string(m[1]))
	return title, title != ""
}
