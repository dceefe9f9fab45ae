package types

// VolumeMin and VolumeMax bound the per-station gain offset understood by the
// hardware playlists this tool produces. Values outside the range are never a
// reason to reject a record; the ingester coerces them to 0 and logs it.
const (
	VolumeMin = -64
	VolumeMax = 64
)

// Unknown is the sentinel used in probe results wherever a station did not
// expose a piece of metadata. It is part of the result cell wire format, so it
// must stay stable across versions.
const Unknown = "unknown"

// DefaultRenameTemplate is the rename pattern applied when the user has not
// configured one. The bracketed placeholders are substituted from the parsed
// result cell; any other text is kept verbatim.
const DefaultRenameTemplate = "[REALNAME] [[CODEC] - [BITRATE]] ([GENRE])"

// StationRecord is a single internet-radio station reference as held in the
// station table: a display name, an absolute http/https stream URL, and a
// volume offset in [VolumeMin, VolumeMax].
type StationRecord struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Volume int    `json:"volume"`
}

// ClampVolume coerces an out-of-range volume to 0 and reports whether it had
// to. The record itself is always kept.
func ClampVolume(v int) (int, bool) {
	if v < VolumeMin || v > VolumeMax {
		return 0, true
	}
	return v, false
}

// PlaylistEntry is one concrete media URL extracted from a playlist document
// (M3U/M3U8, PLS, XSPF), paired with its title when the format carried one.
// Entries are transient; they are counted and thrown away by the prober.
type PlaylistEntry struct {
	URL   string
	Title string
}

// ProbeConfig carries the knobs for a single liveness run. It is captured by
// value when a run starts, so changing the application settings mid-run never
// affects probes already in flight.
type ProbeConfig struct {
	MaxConcurrency int // simultaneous probe workers, 1..50
	TimeoutSeconds int // per-probe GET timeout, 1..60
}

// ResultKind discriminates the ProbeResult variants.
type ResultKind int

const (
	ResultDead ResultKind = iota
	ResultLiveStream
	ResultLivePlaylist
)

// DeadReason classifies why a station probe came back dead. HTTPStatus carries
// the status code in ProbeResult.StatusCode; the other reasons map to the
// fixed reason tokens of the result cell format.
type DeadReason int

const (
	ReasonHTTPStatus DeadReason = iota
	ReasonServerError
	ReasonConnError
	ReasonTimeout
)

// ProbeResult is the terminal classification of one station probe. It is a
// tagged variant: Kind selects which fields are meaningful. Dead results use
// Reason (+StatusCode for ReasonHTTPStatus); live results carry the ICY
// metadata harvested from the response, already repaired and normalized, with
// Unknown standing in for anything the server did not send. LivePlaylist
// additionally carries EntryCount.
//
// The bracketed cell string produced by the result package is the persisted
// form; internally the prober always works with this struct and only
// serializes at the boundary.
type ProbeResult struct {
	Kind       ResultKind
	Reason     DeadReason
	StatusCode int
	EntryCount int
	RealName   string
	Codec      string
	Bitrate    string
	Genre      string
}

// Dead builds a dead result for the given reason.
func Dead(reason DeadReason) ProbeResult {
	return ProbeResult{Kind: ResultDead, Reason: reason}
}

// DeadStatus builds a dead result carrying an HTTP status code.
func DeadStatus(code int) ProbeResult {
	return ProbeResult{Kind: ResultDead, Reason: ReasonHTTPStatus, StatusCode: code}
}

// Live reports whether the result is one of the live variants.
func (r ProbeResult) Live() bool {
	return r.Kind == ResultLiveStream || r.Kind == ResultLivePlaylist
}

// StructuredInfo is the parsed view of a live result cell used by the rename
// path. RealName is empty when the station did not report a name (the caller
// substitutes the old display name); the other fields hold "N/A" when absent.
type StructuredInfo struct {
	RealName string
	Codec    string
	Bitrate  string
	Genre    string
}

// RunSummary is the end-of-run aggregate emitted exactly once per completed
// (non-cancelled) probe run.
type RunSummary struct {
	Checked int `json:"checked"`
	Live    int `json:"live"`
	Dead    int `json:"dead"`
}
