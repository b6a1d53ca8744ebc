// File: internal/gcode/metadata.go
package gcode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// ScanMetadata extracts slicer-emitted summary values from comment
// lines, independent of motion parsing. It recognizes the Cura and
// PrusaSlicer marker dialects. Missing markers yield nil fields, never
// an error. Pure function of its input: scanning the same text twice
// yields identical results.
func ScanMetadata(text string) schemas.Metadata {
	var meta schemas.Metadata

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if !strings.HasPrefix(line, ";") {
			continue
		}
		comment := strings.TrimSpace(line[1:])

		switch {
		// -- Cura --
		case hasMarker(comment, "LAYER_COUNT:"):
			if v, err := strconv.Atoi(markerValue(comment, "LAYER_COUNT:")); err == nil && meta.LayerCount == nil {
				meta.LayerCount = &v
			}
		case hasMarker(comment, "TIME:"):
			if v, err := strconv.Atoi(markerValue(comment, "TIME:")); err == nil && meta.PrintTimeSec == nil {
				meta.PrintTimeSec = &v
			}
		case hasMarker(comment, "Filament used:"):
			// Cura reports meters, e.g. ";Filament used: 1.2345m".
			s := strings.TrimSuffix(markerValue(comment, "Filament used:"), "m")
			if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && meta.FilamentUsedMM == nil {
				mm := v * 1000
				meta.FilamentUsedMM = &mm
			}
		case hasMarker(comment, "Layer height:"):
			if v, err := strconv.ParseFloat(markerValue(comment, "Layer height:"), 64); err == nil && meta.LayerHeightMM == nil {
				meta.LayerHeightMM = &v
			}

		// -- PrusaSlicer --
		case hasMarker(comment, "estimated printing time"):
			if meta.PrintTimeSec == nil {
				if v, ok := parsePrusaDuration(comment); ok {
					meta.PrintTimeSec = &v
				}
			}
		case hasMarker(comment, "filament used [mm]"):
			if v, ok := parseAssignment(comment); ok && meta.FilamentUsedMM == nil {
				meta.FilamentUsedMM = &v
			}
		case hasMarker(comment, "layer_height"):
			if v, ok := parseAssignment(comment); ok && meta.LayerHeightMM == nil {
				meta.LayerHeightMM = &v
			}
		}
	}

	return meta
}

func hasMarker(comment, marker string) bool {
	return strings.HasPrefix(strings.ToLower(comment), strings.ToLower(marker))
}

func markerValue(comment, marker string) string {
	return strings.TrimSpace(comment[len(marker):])
}

// parseAssignment reads the value of a "key = value" comment.
func parseAssignment(comment string) (float64, bool) {
	_, after, found := strings.Cut(comment, "=")
	if !found {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(after), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var prusaDurationRe = regexp.MustCompile(`(?:(\d+)d\s*)?(?:(\d+)h\s*)?(?:(\d+)m\s*)?(?:(\d+)s)?\s*$`)

// parsePrusaDuration reads "; estimated printing time (normal mode) = 1h 6m 30s".
func parsePrusaDuration(comment string) (int, bool) {
	_, after, found := strings.Cut(comment, "=")
	if !found {
		return 0, false
	}
	m := prusaDurationRe.FindStringSubmatch(strings.TrimSpace(after))
	if m == nil {
		return 0, false
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		total += v * mult
	}
	if total == 0 {
		return 0, false
	}
	return total, true
}
