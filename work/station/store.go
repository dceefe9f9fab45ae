// Package station holds the in-memory station table: the ordered list of
// records together with each station's last probe result. All mutating
// operations keep table order stable, matching what a user sees in an editor.
package station

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"radio-manager/work/ingest"
	"radio-manager/work/logger"
	"radio-manager/work/metrics"
	"radio-manager/work/renamer"
	"radio-manager/work/result"
	"radio-manager/work/types"
)

// Station is one row of the table: the persisted record plus the runtime
// state a check run attaches to it. ResultCell is empty until the station has
// been probed.
type Station struct {
	Record      types.StationRecord `json:"record"`
	ResultCell  string              `json:"resultCell,omitempty"`
	StreamTitle string              `json:"streamTitle,omitempty"`
}

// Store is the thread-safe station table.
type Store struct {
	mu       sync.RWMutex
	stations []Station
	logger   *logger.Logger
}

func NewStore(log *logger.Logger) *Store {
	return &Store{logger: log}
}

// LoadContent replaces the table with the stations parsed from raw file
// content. Returns the number of stations loaded and the parser diagnostics.
func (s *Store) LoadContent(content string) (int, []string) {
	records, diags := ingest.Parse(content)

	s.mu.Lock()
	s.stations = make([]Station, len(records))
	for i, rec := range records {
		s.stations[i] = Station{Record: rec}
	}
	count := len(s.stations)
	s.mu.Unlock()

	metrics.StationsLoaded.Set(float64(count))
	return count, diags
}

// LoadFile loads the table from a station list on disk.
func (s *Store) LoadFile(path string) (int, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read stations file: %w", err)
	}
	count, diags := s.LoadContent(string(data))
	return count, diags, nil
}

// Export renders the current table in the exchange format.
func (s *Store) Export() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ingest.Serialize(s.records())
}

// SaveFile writes the current table to disk.
func (s *Store) SaveFile(path string) error {
	return os.WriteFile(path, s.Export(), 0644)
}

// records must be called with at least a read lock held.
func (s *Store) records() []types.StationRecord {
	recs := make([]types.StationRecord, len(s.stations))
	for i := range s.stations {
		recs[i] = s.stations[i].Record
	}
	return recs
}

// List returns a copy of the table.
func (s *Store) List() []Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Station, len(s.stations))
	copy(out, s.stations)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stations)
}

// Get returns the station at index.
func (s *Store) Get(index int) (Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.stations) {
		return Station{}, fmt.Errorf("station index %d out of range", index)
	}
	return s.stations[index], nil
}

// Add appends a station to the table.
func (s *Store) Add(rec types.StationRecord) (int, error) {
	if err := validateRecord(&rec); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = append(s.stations, Station{Record: rec})
	metrics.StationsLoaded.Set(float64(len(s.stations)))
	return len(s.stations) - 1, nil
}

// Update replaces the record at index, clearing its result since the URL may
// have changed.
func (s *Store) Update(index int, rec types.StationRecord) error {
	if err := validateRecord(&rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.stations) {
		return fmt.Errorf("station index %d out of range", index)
	}
	s.stations[index] = Station{Record: rec}
	return nil
}

// Remove deletes the station at index.
func (s *Store) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.stations) {
		return fmt.Errorf("station index %d out of range", index)
	}
	s.stations = append(s.stations[:index], s.stations[index+1:]...)
	metrics.StationsLoaded.Set(float64(len(s.stations)))
	return nil
}

func validateRecord(rec *types.StationRecord) error {
	rec.Name = strings.TrimSpace(rec.Name)
	rec.URL = strings.ReplaceAll(strings.TrimSpace(rec.URL), " ", "")
	if rec.Name == "" {
		return fmt.Errorf("station name must not be empty")
	}
	if !strings.HasPrefix(rec.URL, "http://") && !strings.HasPrefix(rec.URL, "https://") {
		return fmt.Errorf("invalid station URL %q", rec.URL)
	}
	if v, coerced := types.ClampVolume(rec.Volume); coerced {
		rec.Volume = v
	}
	return nil
}

// SetResult attaches a probe result cell to the station at index. Indexes
// from an abandoned run may be stale after table edits, so out-of-range
// writes are dropped.
func (s *Store) SetResult(index int, cell, streamTitle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.stations) {
		return
	}
	s.stations[index].ResultCell = cell
	s.stations[index].StreamTitle = streamTitle
}

// ClearResults wipes all probe results, e.g. before a new run.
func (s *Store) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stations {
		s.stations[i].ResultCell = ""
		s.stations[i].StreamTitle = ""
	}
}

// FindDuplicates marks stations sharing a URL with an earlier row by setting
// their result cell to the duplicate marker. Comparison is case-insensitive
// on the trimmed URL; the first occurrence is never marked. Returns how many
// duplicates were found.
func (s *Store) FindDuplicates() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	count := 0
	for i := range s.stations {
		url := strings.ToLower(strings.TrimSpace(s.stations[i].Record.URL))
		if url == "" {
			continue
		}
		if seen[url] {
			s.stations[i].ResultCell = result.DoubleMarker
			count++
			continue
		}
		seen[url] = true
	}
	return count
}

// RemoveDuplicates deletes every station marked by FindDuplicates.
func (s *Store) RemoveDuplicates() int {
	return s.removeWhere(func(st Station) bool {
		return st.ResultCell == result.DoubleMarker
	})
}

// RemoveInactive deletes stations whose result cell matches one of the dead
// reason tokens, e.g. ["404", "Error", "ConnError", "Timeout"].
func (s *Store) RemoveInactive(tokens []string) int {
	return s.removeWhere(func(st Station) bool {
		return result.IsDeadCell(st.ResultCell, tokens)
	})
}

func (s *Store) removeWhere(match func(Station) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doomed []int
	for i, st := range s.stations {
		if match(st) {
			doomed = append(doomed, i)
		}
	}

	// Remove back to front so earlier indexes stay valid.
	sort.Sort(sort.Reverse(sort.IntSlice(doomed)))
	for _, i := range doomed {
		s.stations = append(s.stations[:i], s.stations[i+1:]...)
	}

	metrics.StationsLoaded.Set(float64(len(s.stations)))
	return len(doomed)
}

// FixHTTPS downgrades https URLs to plain http. Old receiver firmware cannot
// do TLS, and most radio streams are served over both.
func (s *Store) FixHTTPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := range s.stations {
		url := s.stations[i].Record.URL
		if strings.HasPrefix(url, "https://") {
			s.stations[i].Record.URL = "http://" + strings.TrimPrefix(url, "https://")
			changed++
		}
	}
	return changed
}

// RenamePair records one rename applied to the table.
type RenamePair struct {
	Index   int    `json:"index"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// ApplyRename renames stations from their result cells using the template.
// With all=false only the station at index is processed. Returns the old/new
// pair for every name that actually changed.
func (s *Store) ApplyRename(template string, all bool, index int) []RenamePair {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pairs []RenamePair
	for i := range s.stations {
		if !all && i != index {
			continue
		}
		st := &s.stations[i]
		newName := renamer.RenderName(template, st.Record.Name, st.ResultCell)
		if newName != st.Record.Name {
			pairs = append(pairs, RenamePair{Index: i, OldName: st.Record.Name, NewName: newName})
			st.Record.Name = newName
		}
	}
	return pairs
}
