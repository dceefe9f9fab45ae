package parser

import (
	"encoding/xml"
	"strconv"
	"strings"

	"radio-manager/work/types"
)

var playlistExtensions = []string{".m3u", ".m3u8", ".pls", ".xspf"}

var playlistContentTypes = []string{
	"m3u", "mpegurl", "playlist", "audio/x-mpegurl",
	"application/vnd.apple.mpegurl", "audio/scpls",
	"application/xspf+xml",
}

// LooksLikePlaylist reports whether a URL or its response content type points
// at a playlist rather than a raw stream. Either signal alone is enough.
func LooksLikePlaylist(url, contentType string) bool {
	lowered := strings.ToLower(url)
	for _, ext := range playlistExtensions {
		if strings.Contains(lowered, ext) {
			return true
		}
	}

	contentType = strings.ToLower(contentType)
	if contentType == "" {
		return false
	}
	for _, key := range playlistContentTypes {
		if strings.Contains(contentType, key) {
			return true
		}
	}
	return false
}

// parsePLS reads the INI-style PLS dialect: FileN= entries with optional
// TitleN= companions, emitted in index order.
func parsePLS(content, baseURL string) []types.PlaylistEntry {
	files := make(map[int]string)
	titles := make(map[int]string)
	maxIdx := 0

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch {
		case strings.HasPrefix(key, "file"):
			if idx, err := strconv.Atoi(key[len("file"):]); err == nil {
				files[idx] = value
				if idx > maxIdx {
					maxIdx = idx
				}
			}
		case strings.HasPrefix(key, "title"):
			if idx, err := strconv.Atoi(key[len("title"):]); err == nil {
				titles[idx] = value
			}
		}
	}

	var entries []types.PlaylistEntry
	for idx := 1; idx <= maxIdx; idx++ {
		file, ok := files[idx]
		if !ok {
			continue
		}
		entries = append(entries, types.PlaylistEntry{
			URL:   resolveRef(baseURL, file),
			Title: titles[idx],
		})
	}
	return entries
}

// xspfTrack matches <track> elements regardless of the document's namespace;
// unqualified field names match any namespace in encoding/xml.
type xspfTrack struct {
	Location string `xml:"location"`
	Title    string `xml:"title"`
}

type xspfDocument struct {
	XMLName xml.Name    `xml:"playlist"`
	Tracks  []xspfTrack `xml:"trackList>track"`
}

func parseXSPF(data []byte, baseURL string) []types.PlaylistEntry {
	var doc xspfDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil
	}

	var entries []types.PlaylistEntry
	for _, track := range doc.Tracks {
		loc := strings.TrimSpace(track.Location)
		if loc == "" {
			continue
		}
		entries = append(entries, types.PlaylistEntry{
			URL:   resolveRef(baseURL, loc),
			Title: strings.TrimSpace(track.Title),
		})
	}
	return entries
}
