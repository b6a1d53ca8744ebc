// File: internal/gcode/classifier.go
package gcode

import (
	"math"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// MoveContext is everything a classifier may inspect about one move.
type MoveContext struct {
	// DeltaE is the extruder change relative to the previous command.
	DeltaE float64
	// XYDistance is the euclidean displacement on the build plate.
	XYDistance float64
	// Section is the active slicer section hint (;TYPE: marker), or
	// SegmentUnknown when no marker has been seen in this layer.
	Section schemas.SegmentKind
}

// MoveClassifier decides the segment kind of a single move. No single
// heuristic is correct across all slicers, so the segmenter treats the
// classifier as a replaceable strategy. A non-empty note marks the
// classification as ambiguous; the segmenter records it and keeps the
// move.
type MoveClassifier interface {
	Classify(mc MoveContext) (kind schemas.SegmentKind, note string)
}

// ThresholdClassifier is the default strategy: extrusion-rate and
// path-length thresholds, with slicer section markers taking precedence
// for extruding moves.
//
//   - extruding with non-trivial XY displacement: the section hint when
//     present, otherwise unknown with an ambiguity note
//   - small E reversal near zero net flow with trivial XY: wipe
//   - non-extruding XY-only motion: travel
type ThresholdClassifier struct {
	// TrivialXY is the displacement below which XY motion is not
	// considered real travel.
	TrivialXY float64
	// WipeWindowE bounds the absolute net E delta of a wipe move.
	WipeWindowE float64
}

var _ MoveClassifier = (*ThresholdClassifier)(nil)

// Classify implements MoveClassifier.
func (c *ThresholdClassifier) Classify(mc MoveContext) (schemas.SegmentKind, string) {
	extruding := mc.DeltaE > 0

	if extruding && mc.XYDistance > c.TrivialXY {
		if mc.Section != schemas.SegmentUnknown && mc.Section != "" {
			return mc.Section, ""
		}
		return schemas.SegmentUnknown, "extruding move without a section marker"
	}

	if mc.XYDistance <= c.TrivialXY {
		if mc.DeltaE == 0 {
			// Z-only or zero-length move; grouped with travel.
			return schemas.SegmentTravel, ""
		}
		if math.Abs(mc.DeltaE) <= c.WipeWindowE {
			return schemas.SegmentWipe, ""
		}
		if mc.DeltaE < 0 {
			// Full retraction without travel; treated as travel plumbing.
			return schemas.SegmentTravel, ""
		}
		return schemas.SegmentUnknown, "extrusion without travel exceeds wipe window"
	}

	// Non-extruding (or retracting) move across the plate.
	return schemas.SegmentTravel, ""
}
