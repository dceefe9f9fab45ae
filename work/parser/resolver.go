// Package parser resolves playlist URLs into flat lists of stream entries.
// Radio directories hand out M3U, PLS and XSPF files interchangeably, often
// nested (a playlist whose entries are playlists), so resolution sniffs the
// format by content, walks nested playlists up to a fixed depth and guards
// against reference cycles.
package parser

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"radio-manager/work/cache"
	"radio-manager/work/client"
	"radio-manager/work/config"
	"radio-manager/work/logger"
	"radio-manager/work/types"
	"radio-manager/work/utils"

	"github.com/grafov/m3u8"
)

// MaxDepth bounds nested playlist resolution. Three levels covers every chain
// seen in the wild; anything deeper is a loop or a broken directory.
const MaxDepth = 3

const maxPlaylistBytes = 2 << 20

// Resolver fetches playlists and flattens them into stream entries.
type Resolver struct {
	httpClient *client.HeaderSettingClient
	cache      *cache.Cache
	cfg        *config.Config
	logger     *logger.Logger
}

func New(httpClient *client.HeaderSettingClient, c *cache.Cache, cfg *config.Config, log *logger.Logger) *Resolver {
	return &Resolver{
		httpClient: httpClient,
		cache:      c,
		cfg:        cfg,
		logger:     log,
	}
}

// Resolve fetches the playlist at url and returns its entries with nested
// playlists expanded in place. Failures of any kind resolve to an empty list;
// the caller decides what an empty playlist means.
func (r *Resolver) Resolve(ctx context.Context, playlistURL string) []types.PlaylistEntry {
	return r.resolve(ctx, playlistURL, 0, make(map[string]struct{}))
}

func (r *Resolver) resolve(ctx context.Context, playlistURL string, depth int, visited map[string]struct{}) []types.PlaylistEntry {
	if depth > MaxDepth {
		return nil
	}
	if _, seen := visited[playlistURL]; seen {
		return nil
	}
	visited[playlistURL] = struct{}{}

	if entries, ok := r.cache.GetEntries(playlistURL); ok {
		return entries
	}

	data, ok := r.fetch(ctx, playlistURL)
	if !ok {
		return nil
	}

	entries := r.parse(data, playlistURL)

	// Entries that are themselves playlists get expanded in place. An entry
	// that expands to nothing is dropped rather than kept as a dead URL.
	var flat []types.PlaylistEntry
	for _, e := range entries {
		if LooksLikePlaylist(e.URL, "") {
			flat = append(flat, r.resolve(ctx, e.URL, depth+1, visited)...)
			continue
		}
		flat = append(flat, e)
	}

	r.cache.SetEntries(playlistURL, flat)
	return flat
}

func (r *Resolver) fetch(ctx context.Context, playlistURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, false
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if r.cfg.Debug {
			r.logger.Debug("playlist fetch failed for %s: %v", utils.LogURL(r.cfg, playlistURL), err)
		}
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if r.cfg.Debug {
			r.logger.Debug("playlist fetch got HTTP %d for %s", resp.StatusCode, utils.LogURL(r.cfg, playlistURL))
		}
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return nil, false
	}
	return data, true
}

// parse sniffs the format by content and dispatches. URLs inside the playlist
// are resolved against the playlist's own URL.
func (r *Resolver) parse(data []byte, baseURL string) []types.PlaylistEntry {
	s := strings.ToLower(strings.TrimSpace(string(data)))

	switch {
	case strings.Contains(s, "#extm3u") || strings.Contains(s, "#extinf"):
		return r.parseM3U(data, baseURL)
	case strings.Contains(s, "[playlist]") || strings.Contains(s, "file1="):
		return parsePLS(string(data), baseURL)
	case strings.Contains(s, "<playlist") && strings.Contains(s, "<tracklist"):
		return parseXSPF(data, baseURL)
	default:
		// Plain list of URLs, one per line.
		var entries []types.PlaylistEntry
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if !strings.HasPrefix(strings.ToLower(line), "http") {
				continue
			}
			entries = append(entries, types.PlaylistEntry{URL: resolveRef(baseURL, line)})
		}
		return entries
	}
}

// parseM3U tries the grafov decoder first and falls back to a line scanner
// for the loose EXTINF dialect radio playlists actually use.
func (r *Resolver) parseM3U(data []byte, baseURL string) []types.PlaylistEntry {
	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(data)), true)
	if err == nil {
		if entries := entriesFromGrafov(playlist, listType, baseURL); len(entries) > 0 {
			return entries
		}
	} else if r.cfg.Debug {
		r.logger.Debug("m3u8 decoder failed, using fallback parser: %v", err)
	}

	return parseM3UFallback(string(data), baseURL)
}

func entriesFromGrafov(playlist m3u8.Playlist, listType m3u8.ListType, baseURL string) []types.PlaylistEntry {
	var entries []types.PlaylistEntry

	switch listType {
	case m3u8.MEDIA:
		mediapl := playlist.(*m3u8.MediaPlaylist)
		for _, seg := range mediapl.Segments {
			if seg == nil {
				break
			}
			entries = append(entries, types.PlaylistEntry{
				URL:   resolveRef(baseURL, seg.URI),
				Title: seg.Title,
			})
		}
	case m3u8.MASTER:
		masterpl := playlist.(*m3u8.MasterPlaylist)
		for _, variant := range masterpl.Variants {
			if variant == nil {
				break
			}
			entries = append(entries, types.PlaylistEntry{
				URL:   resolveRef(baseURL, variant.URI),
				Title: variant.Name,
			})
		}
	}

	return entries
}

func parseM3UFallback(content, baseURL string) []types.PlaylistEntry {
	var entries []types.PlaylistEntry
	var pendingTitle string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(line), "#EXTINF") {
			if idx := strings.Index(line, ","); idx != -1 {
				pendingTitle = strings.TrimSpace(line[idx+1:])
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, types.PlaylistEntry{URL: resolveRef(baseURL, line), Title: pendingTitle})
		pendingTitle = ""
	}

	return entries
}

// resolveRef resolves a possibly relative playlist reference against the
// playlist URL it came from.
func resolveRef(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
