// File: internal/gcode/segmenter_test.go
package gcode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
	"github.com/fdmtools/printdoctor-cli/internal/config"
)

func segmentText(t *testing.T, text string) *schemas.SegmentationResult {
	t.Helper()
	logger := zaptest.NewLogger(t)
	parsed := NewParser(logger).Parse(text)
	s := NewSegmenter(config.NewDefaultConfig().Parser, nil, logger)
	return s.Segment(text, parsed)
}

const threeLayerSample = `;FLAVOR:Marlin
;LAYER_COUNT:3
G28
G90
;LAYER:0
G1 Z0.2 F1200
;TYPE:WALL-OUTER
G1 X20 Y0 E1.0
G1 X20 Y20 E2.0
;LAYER:1
G1 Z0.4
G1 X0 Y20 E3.0
;LAYER:2
G1 Z0.6
G1 X0 Y0 E4.0
`

func TestSegment_ExplicitLayerMarkers(t *testing.T) {
	res := segmentText(t, threeLayerSample)

	// Exactly as many layers as markers; LAYER_COUNT is metadata, not a
	// boundary.
	require.Len(t, res.Layers, 3)
	for i, layer := range res.Layers {
		assert.Equal(t, i, layer.Index)
	}
	assert.Equal(t, 0.2, res.Layers[0].Z)
	assert.Equal(t, 0.4, res.Layers[1].Z)
	assert.Equal(t, 0.6, res.Layers[2].Z)
}

func TestSegment_SectionHintsClassifyExtrusion(t *testing.T) {
	res := segmentText(t, threeLayerSample)

	require.Len(t, res.Layers[0].Segments, 2)
	first := res.Layers[0].Segments[0]
	assert.Equal(t, schemas.SegmentTravel, first.Kind) // the Z move
	assert.False(t, first.Extruding)

	wall := res.Layers[0].Segments[1]
	assert.Equal(t, schemas.SegmentPerimeter, wall.Kind)
	assert.True(t, wall.Extruding)
	assert.Equal(t, 8, wall.StartLine)
	assert.Equal(t, 9, wall.EndLine)
}

func TestSegment_PointOrderPreserved(t *testing.T) {
	res := segmentText(t, threeLayerSample)

	wall := res.Layers[0].Segments[1]
	want := []schemas.Point{
		{X: 20, Y: 0, Z: 0.2},
		{X: 20, Y: 20, Z: 0.2},
	}
	assert.Empty(t, cmp.Diff(want, wall.Points))
}

func TestSegment_ImplicitZBoundaries(t *testing.T) {
	// No layer markers: layer changes come from Z increases beyond the
	// threshold. The 0.03 Z-hop stays inside its layer.
	text := `G90
G1 Z0.2 F1200
G1 X10 Y0 E1
G1 Z0.23
G1 X20 Y0 E2
G1 Z0.5
G1 X0 Y0 E3
`
	res := segmentText(t, text)

	require.Len(t, res.Layers, 2)
	assert.Equal(t, 0, res.Layers[0].Index)
	assert.Equal(t, 1, res.Layers[1].Index)
	assert.Equal(t, 0.2, res.Layers[0].Z)
	assert.Equal(t, 0.5, res.Layers[1].Z)
}

func TestSegment_MarkersSuppressZHeuristic(t *testing.T) {
	// With explicit markers present, even a large Z jump must not split
	// a layer on its own.
	text := `;LAYER:0
G1 Z0.2
G1 X10 E1
G1 Z5.0
G1 X20 E2
`
	res := segmentText(t, text)
	assert.Len(t, res.Layers, 1)
}

func TestSegment_WipeAndRetraction(t *testing.T) {
	text := `G90
G1 X10 Y0 E1.0
G1 E0.9
G1 X30 Y0
G1 E1.0
`
	res := segmentText(t, text)

	assert.Equal(t, 1, res.RetractionCount)

	require.Len(t, res.Layers, 1)
	var kinds []schemas.SegmentKind
	for _, seg := range res.Layers[0].Segments {
		kinds = append(kinds, seg.Kind)
	}
	// extruding move (no section marker -> unknown), wipe-sized
	// retraction, travel, wipe-sized de-retraction
	want := []schemas.SegmentKind{
		schemas.SegmentUnknown,
		schemas.SegmentWipe,
		schemas.SegmentTravel,
		schemas.SegmentWipe,
	}
	assert.Equal(t, want, kinds)
}

func TestSegment_AmbiguousMovesAreKeptWithNotes(t *testing.T) {
	// An extruding move without any section marker is kept as unknown
	// and recorded as ambiguous, never dropped.
	text := "G90\nG1 X10 Y0 E1.0\n"
	res := segmentText(t, text)

	require.Len(t, res.Layers, 1)
	require.Len(t, res.Layers[0].Segments, 1)
	assert.Equal(t, schemas.SegmentUnknown, res.Layers[0].Segments[0].Kind)
	require.Len(t, res.Notes, 1)
	assert.Equal(t, 2, res.Notes[0].Line)
}

func TestSegment_Temperatures(t *testing.T) {
	text := `M104 S210
M140 S60
;LAYER:0
G1 Z0.2
G1 X10 E1
`
	res := segmentText(t, text)

	require.Len(t, res.Temperatures, 2)
	require.NotNil(t, res.Temperatures[0].Nozzle)
	assert.Equal(t, 210.0, *res.Temperatures[0].Nozzle)
	assert.Equal(t, 0, res.Temperatures[0].Layer)
	require.NotNil(t, res.Temperatures[1].Bed)
	assert.Equal(t, 60.0, *res.Temperatures[1].Bed)
}

func TestSegment_EmptyInputYieldsSingleLayer(t *testing.T) {
	res := segmentText(t, "")

	require.Len(t, res.Layers, 1)
	assert.Equal(t, 0, res.Layers[0].Index)
	assert.Empty(t, res.Layers[0].Segments)
}

func TestSegment_PrusaLayerChangeMarkers(t *testing.T) {
	text := `;LAYER_CHANGE
G1 Z0.2
G1 X10 E1
;LAYER_CHANGE
G1 Z0.4
G1 X0 E2
`
	res := segmentText(t, text)
	assert.Len(t, res.Layers, 2)
}
