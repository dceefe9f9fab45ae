// Package ingest performs tolerant parsing of the tabular station exchange
// format: one station per line, name / url / volume separated by tabs or runs
// of two and more spaces. Real-world files are messy, with glued columns and
// doubled URLs, so every line is processed independently and a bad
// line only costs that line, never the run.
package ingest

import (
	"fmt"
	"strconv"
	"strings"

	regexp "github.com/grafana/regexp"

	"radio-manager/work/types"
)

var (
	reFieldSplit = regexp.MustCompile(`\t+|\s{2,}`)
	reURLScheme  = regexp.MustCompile(`^https?://`)

	// A single-field line carrying two URLs is a name+url+url(+volume) glue-up
	// produced by copy/paste from result tables; the first URL wins.
	reGluedDouble = regexp.MustCompile(`^(.*?)\s+(https?://.*?)\s+(https?://.*?)(?:\s+(-?\d+))?$`)
)

// Parse turns raw file content into station records plus per-line diagnostics.
// A leading UTF-8 byte order mark is tolerated, empty lines are skipped, and a
// malformed line is reported and skipped without aborting the run. The last
// diagnostic is always the summary line "<n> succeeded, <m> failed".
func Parse(content string) ([]types.StationRecord, []string) {
	var (
		records     []types.StationRecord
		diagnostics []string
		success     int
		failure     int
	)

	content = strings.TrimPrefix(content, "\uFEFF")

	for lineNum, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(strings.TrimPrefix(raw, "\uFEFF"))
		if line == "" {
			continue
		}

		rec, diags, err := parseLine(line, lineNum+1)
		diagnostics = append(diagnostics, diags...)
		if err != nil {
			failure++
			diagnostics = append(diagnostics, fmt.Sprintf("line %d: %v", lineNum+1, err))
			continue
		}

		records = append(records, rec)
		success++
	}

	diagnostics = append(diagnostics, fmt.Sprintf("%d succeeded, %d failed", success, failure))
	return records, diagnostics
}

// parseLine extracts one record. Non-fatal oddities (bad volume) are returned
// as diagnostics alongside the record; a returned error means the line is
// dropped.
func parseLine(line string, lineNum int) (types.StationRecord, []string, error) {
	var name, rawURL, rawVolume string

	parts := reFieldSplit.Split(line, -1)

	switch {
	case len(parts) == 1 && strings.Contains(parts[0], " "):
		var err error
		name, rawURL, rawVolume, err = splitSingleField(parts[0])
		if err != nil {
			return types.StationRecord{}, nil, err
		}

	case len(parts) >= 3:
		name = strings.Join(parts[:len(parts)-2], " ")
		rawURL = parts[len(parts)-2]
		rawVolume = parts[len(parts)-1]

	default:
		return types.StationRecord{}, nil, fmt.Errorf("insufficient fields")
	}

	// URLs must not contain embedded whitespace.
	rawURL = strings.ReplaceAll(strings.TrimSpace(rawURL), " ", "")
	if !reURLScheme.MatchString(rawURL) {
		return types.StationRecord{}, nil, fmt.Errorf("invalid URL format %q", rawURL)
	}

	var diags []string
	volume := 0
	if rawVolume != "" {
		v, err := strconv.Atoi(rawVolume)
		if err != nil {
			diags = append(diags, fmt.Sprintf("line %d: invalid volume %q, set to 0", lineNum, rawVolume))
		} else if clamped, coerced := types.ClampVolume(v); coerced {
			diags = append(diags, fmt.Sprintf("line %d: volume %d out of range, set to 0", lineNum, v))
		} else {
			volume = clamped
		}
	}

	return types.StationRecord{
		Name:   strings.TrimSpace(name),
		URL:    rawURL,
		Volume: volume,
	}, diags, nil
}

// splitSingleField handles lines where the columns collapsed into one
// space-separated field.
func splitSingleField(field string) (name, url, volume string, err error) {
	if strings.Count(field, "http") >= 2 {
		if m := reGluedDouble.FindStringSubmatch(field); m != nil {
			// m[4] is the optional volume; when the two URLs differ the
			// first one is preferred.
			return m[1], m[2], m[4], nil
		}
	}

	toks := strings.Fields(field)
	if len(toks) < 2 {
		return "", "", "", fmt.Errorf("insufficient fields")
	}

	last := toks[len(toks)-1]
	if reURLScheme.MatchString(last) {
		// Trailing URL, no volume column.
		return strings.Join(toks[:len(toks)-1], " "), last, "", nil
	}
	if len(toks) < 3 {
		return "", "", "", fmt.Errorf("insufficient fields")
	}
	return strings.Join(toks[:len(toks)-2], " "), toks[len(toks)-2], last, nil
}

// Serialize renders records back to the exchange format: tab-separated fields,
// CRLF line endings, UTF-8 without a byte order mark.
func Serialize(records []types.StationRecord) []byte {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.Name)
		b.WriteByte('\t')
		b.WriteString(rec.URL)
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(rec.Volume))
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}
