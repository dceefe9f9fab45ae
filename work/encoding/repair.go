// Package encoding repairs mojibake in ICY metadata. Stations frequently
// announce Cyrillic names in cp1251 or koi8-r without declaring a charset,
// and the transport layer then reinterprets those bytes as Latin-1. Repair
// recovers the original bytes and re-decodes them with a detector plus a
// fixed ladder of legacy Cyrillic codepages.
package encoding

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Characters that almost never appear in honest text but show up constantly
// when UTF-8 Cyrillic is read as a single-byte codepage.
const telltales = "ÐÑÂ"

// Punctuation that is legitimate in station names despite sitting outside
// the ASCII, Cyrillic and extended Latin ranges.
const allowedPunct = " «»—–№ёЁ†‡‰Љ‹ЊЋЏ"

var fallbackDecoders = []*charmap.Charmap{
	charmap.Windows1251,
	charmap.KOI8R,
	charmap.ISO8859_5,
	charmap.CodePage866,
}

var detector = chardet.NewTextDetector()

// Repair attempts to recover garbled metadata text. When the input shows no
// telltale signs of a charset mixup, or no decoding produces plausible text,
// the input is returned unchanged.
func Repair(text string) string {
	if text == "" || !hasMojibake(text) {
		return text
	}

	raw, ok := originalBytes(text)
	if !ok {
		return text
	}

	// The most common breakage is UTF-8 read as Latin-1; undoing that is
	// exact, so try it before any statistical detection.
	if utf8.Valid(raw) {
		if cand := string(raw); cand != text && plausible(cand) {
			return cand
		}
	}

	if best, err := detector.DetectBest(raw); err == nil && best != nil {
		if dec := decoderFor(best.Charset); dec != nil {
			if cand, err := dec.Bytes(raw); err == nil && plausible(string(cand)) {
				return string(cand)
			}
		}
	}

	for _, cm := range fallbackDecoders {
		cand, err := cm.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		if plausible(string(cand)) {
			return string(cand)
		}
	}

	return text
}

// hasMojibake reports the artifacts of a charset mixup: the lead bytes of
// UTF-8 Cyrillic read as Latin-1, or C1 control characters, which honest
// text never contains but misread UTF-8 continuation bytes produce.
func hasMojibake(text string) bool {
	if strings.ContainsAny(text, telltales) {
		return true
	}
	for _, r := range text {
		if r >= 0x80 && r <= 0x9F {
			return true
		}
	}
	return false
}

// originalBytes undoes a Latin-1 reinterpretation: each rune below U+0100 maps
// back to the single byte it came from. Runes above that range mean the text
// was never mangled this way.
func originalBytes(text string) ([]byte, bool) {
	raw := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0xFF {
			return nil, false
		}
		raw = append(raw, byte(r))
	}
	return raw, true
}

func decoderFor(charset string) *encoding.Decoder {
	switch strings.ToLower(charset) {
	case "windows-1251":
		return charmap.Windows1251.NewDecoder()
	case "koi8-r":
		return charmap.KOI8R.NewDecoder()
	case "iso-8859-5":
		return charmap.ISO8859_5.NewDecoder()
	case "ibm866", "cp866":
		return charmap.CodePage866.NewDecoder()
	case "utf-8":
		return encoding.Nop.NewDecoder()
	default:
		return nil
	}
}

// plausible accepts a candidate decoding when fewer than 30% of its runes fall
// outside ASCII, Cyrillic, extended Latin and a short list of punctuation.
func plausible(text string) bool {
	if text == "" {
		return false
	}

	strange, total := 0, 0
	for _, r := range text {
		total++
		if r <= 127 {
			continue
		}
		if r >= 0x0400 && r <= 0x04FF {
			continue
		}
		if r >= 0x00C0 && r <= 0x017F {
			continue
		}
		if strings.ContainsRune(allowedPunct, r) {
			continue
		}
		strange++
	}

	return float64(strange)/float64(total) < 0.3
}
