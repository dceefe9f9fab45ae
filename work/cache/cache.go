// Package cache keeps recently resolved playlists in memory so that a re-run
// of a check does not refetch and re-walk the same playlist chain. Entries
// expire on a fixed TTL; playlists do change, just not within a session.
package cache

import (
	"time"

	"github.com/maypok86/otter/v2"

	"radio-manager/work/types"
)

const maxPlaylists = 2048

// Cache stores resolved playlist entry lists keyed by playlist URL.
type Cache struct {
	entries *otter.Cache[string, []types.PlaylistEntry]
	enabled bool
}

// NewCache creates a cache whose entries expire duration after being written.
// A disabled cache is a valid object that never stores or returns anything.
func NewCache(duration time.Duration, enabled bool) *Cache {
	c := &Cache{enabled: enabled}
	if !enabled {
		return c
	}

	c.entries = otter.Must(&otter.Options[string, []types.PlaylistEntry]{
		MaximumSize:      maxPlaylists,
		ExpiryCalculator: otter.ExpiryWriting[string, []types.PlaylistEntry](duration),
	})
	return c
}

// GetEntries returns the cached entry list for a playlist URL, if present and
// not expired.
func (c *Cache) GetEntries(url string) ([]types.PlaylistEntry, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.entries.GetIfPresent(url)
}

// SetEntries stores the resolved entry list for a playlist URL.
func (c *Cache) SetEntries(url string, entries []types.PlaylistEntry) {
	if !c.enabled {
		return
	}
	c.entries.Set(url, entries)
}

// Clear drops every cached playlist.
func (c *Cache) Clear() {
	if !c.enabled {
		return
	}
	c.entries.InvalidateAll()
}
