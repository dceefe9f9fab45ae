// Package renamer rewrites station display names from their probe results. A
// template like "[REALNAME] [[CODEC] - [BITRATE]] ([GENRE])" is filled from
// the parsed result cell; stations without a live result keep their name.
package renamer

import (
	"strings"

	"radio-manager/work/result"
	"radio-manager/work/types"
)

// Variables lists every placeholder a template may use.
var Variables = []string{"[REALNAME]", "[OLDNAME]", "[BITRATE]", "[CODEC]", "[GENRE]"}

// RenderName builds the new display name for one station. Returns the old
// name unchanged when the result cell does not parse as a live result, when a
// placeholder value is missing it renders as "N/A", and an empty RealName
// falls back to the old name so a rename never erases it.
func RenderName(template, oldName, resultCell string) string {
	info, ok := result.Parse(resultCell)
	if !ok {
		return oldName
	}
	return render(template, oldName, info)
}

func render(template, oldName string, info *types.StructuredInfo) string {
	realName := info.RealName
	if realName == "" {
		realName = oldName
	}

	values := map[string]string{
		"[REALNAME]": realName,
		"[OLDNAME]":  oldName,
		"[CODEC]":    info.Codec,
		"[BITRATE]":  info.Bitrate,
		"[GENRE]":    info.Genre,
	}

	out := template
	for _, tag := range Variables {
		value := values[tag]
		if value == "" {
			value = "N/A"
		}
		out = strings.ReplaceAll(out, tag, value)
	}
	return out
}
