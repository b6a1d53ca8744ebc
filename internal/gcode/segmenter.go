// File: internal/gcode/segmenter.go
package gcode

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
	"github.com/fdmtools/printdoctor-cli/internal/config"
)

// Segmenter converts a MotionCommand sequence into the Layer->Segment
// structure. Layer boundaries come from explicit layer-change markers
// when the file carries them; otherwise a Z increase beyond the
// configured threshold starts a new layer. Move classification is
// delegated to a MoveClassifier strategy.
//
// Segmentation is synchronous, pure and reentrant: no state is shared
// across Segment calls.
type Segmenter struct {
	cfg        config.ParserConfig
	classifier MoveClassifier
	logger     *zap.Logger
}

// NewSegmenter creates a segmenter. A nil classifier selects the
// default ThresholdClassifier built from cfg.
func NewSegmenter(cfg config.ParserConfig, classifier MoveClassifier, logger *zap.Logger) *Segmenter {
	if classifier == nil {
		classifier = &ThresholdClassifier{
			TrivialXY:   cfg.TrivialXYDistance,
			WipeWindowE: cfg.WipeWindowE,
		}
	}
	return &Segmenter{
		cfg:        cfg,
		classifier: classifier,
		logger:     logger.Named("gcode-segmenter"),
	}
}

// marker is a slicer comment the segmenter acts on, keyed to its
// 1-based source line.
type marker struct {
	line       int
	layerStart bool
	section    schemas.SegmentKind
}

// Segment builds the per-layer structure. The raw text is scanned for
// layer/section markers (the parser deliberately skips comment lines),
// then merged with the command stream by line number.
func (s *Segmenter) Segment(text string, parsed *schemas.ParseResult) *schemas.SegmentationResult {
	markers, hasLayerMarkers := scanMarkers(text)
	result := &schemas.SegmentationResult{}

	b := builder{
		result:          result,
		classifier:      s.classifier,
		minLayerDeltaZ:  s.cfg.MinLayerDeltaZ,
		hasLayerMarkers: hasLayerMarkers,
	}

	mi := 0
	var prev *schemas.MotionCommand
	for i := range parsed.Commands {
		cmd := &parsed.Commands[i]

		// Apply all markers that precede this command.
		for mi < len(markers) && markers[mi].line <= cmd.Line {
			b.applyMarker(markers[mi])
			mi++
		}

		switch cmd.Kind {
		case schemas.CommandOther:
			b.observeTemperature(cmd)
		default:
			b.observeMove(prev, cmd)
		}
		prev = cmd
	}

	b.flush()

	// A file with zero recognized layer markers and no Z variation
	// yields exactly one layer containing all segments.
	if len(result.Layers) == 0 {
		result.Layers = append(result.Layers, schemas.Layer{Index: 0})
	}

	s.logger.Debug("Segmentation complete",
		zap.Int("layers", len(result.Layers)),
		zap.Int("notes", len(result.Notes)),
		zap.Int("retractions", result.RetractionCount))
	return result
}

// builder carries the in-flight layer/segment state of one pass.
type builder struct {
	result     *schemas.SegmentationResult
	classifier MoveClassifier

	minLayerDeltaZ  float64
	hasLayerMarkers bool

	section schemas.SegmentKind // active ;TYPE: hint

	layerOpen     bool
	layerImplicit bool
	layerZ        float64
	segments      []schemas.Segment

	segOpen bool
	seg     schemas.Segment
	segE    float64 // net E over the open segment
}

// applyMarker folds a slicer marker into the builder state.
func (b *builder) applyMarker(m marker) {
	if m.section != "" {
		b.section = m.section
		return
	}
	if !m.layerStart {
		return
	}
	// The first explicit marker claims a layer that was opened
	// implicitly for pre-layer start code, instead of splitting it.
	if b.layerOpen && b.layerImplicit && len(b.result.Layers) == 0 {
		b.layerImplicit = false
		b.section = schemas.SegmentUnknown
		return
	}
	b.closeLayer()
	b.openLayer(false)
	b.section = schemas.SegmentUnknown
}

func (b *builder) openLayer(implicit bool) {
	b.layerOpen = true
	b.layerImplicit = implicit
	b.layerZ = math.NaN()
	b.segments = nil
}

func (b *builder) closeLayer() {
	if !b.layerOpen {
		return
	}
	b.closeSegment()
	z := b.layerZ
	if math.IsNaN(z) {
		z = 0
	}
	b.result.Layers = append(b.result.Layers, schemas.Layer{
		Index:    len(b.result.Layers),
		Z:        z,
		Segments: b.segments,
	})
	b.layerOpen = false
}

func (b *builder) closeSegment() {
	if !b.segOpen {
		return
	}
	b.seg.Extruding = b.segE > 0
	b.segments = append(b.segments, b.seg)
	b.segOpen = false
	b.segE = 0
}

// observeMove classifies one move and appends it to the current
// segment, opening layers and segments as boundaries demand.
func (b *builder) observeMove(prev, cmd *schemas.MotionCommand) {
	var deltaE, xyDist, prevZ float64
	if prev != nil {
		deltaE = cmd.E - prev.E
		xyDist = math.Hypot(cmd.X-prev.X, cmd.Y-prev.Y)
		prevZ = prev.Z
	} else {
		deltaE = cmd.E
		xyDist = math.Hypot(cmd.X, cmd.Y)
	}

	if deltaE < 0 {
		b.result.RetractionCount++
	}

	if !b.layerOpen {
		b.openLayer(true)
	}

	// Implicit layer boundary: only when the file carries no explicit
	// markers, and only for Z increases beyond the threshold. Small
	// Z-hops stay inside the layer.
	if !b.hasLayerMarkers && prev != nil && cmd.Z-prevZ > b.minLayerDeltaZ && !math.IsNaN(b.layerZ) {
		b.closeLayer()
		b.openLayer(true)
	}

	if math.IsNaN(b.layerZ) {
		b.layerZ = cmd.Z
	}

	kind, note := b.classifier.Classify(MoveContext{
		DeltaE:     deltaE,
		XYDistance: xyDist,
		Section:    b.section,
	})
	if note != "" {
		b.result.Notes = append(b.result.Notes, schemas.AmbiguityNote{Line: cmd.Line, Reason: note})
	}

	if b.segOpen && b.seg.Kind != kind {
		b.closeSegment()
	}
	if !b.segOpen {
		b.segOpen = true
		b.seg = schemas.Segment{
			Kind:      kind,
			StartLine: cmd.Line,
		}
	}
	b.seg.Points = append(b.seg.Points, schemas.Point{X: cmd.X, Y: cmd.Y, Z: cmd.Z})
	b.seg.EndLine = cmd.Line
	b.segE += deltaE
}

// observeTemperature records M104/M109 (nozzle) and M140/M190 (bed)
// set-points against the current layer.
func (b *builder) observeTemperature(cmd *schemas.MotionCommand) {
	word, temp, ok := parseTempCommand(cmd.Raw)
	if !ok {
		return
	}
	layer := len(b.result.Layers)
	sample := schemas.TemperatureSample{Layer: layer}
	switch word {
	case "M104", "M109":
		sample.Nozzle = &temp
	case "M140", "M190":
		sample.Bed = &temp
	}
	b.result.Temperatures = append(b.result.Temperatures, sample)
}

func (b *builder) flush() {
	b.closeLayer()
}

// parseTempCommand extracts the S value of a temperature set command.
func parseTempCommand(raw string) (word string, temp float64, ok bool) {
	code := stripComment(raw)
	fields := strings.Fields(code)
	if len(fields) == 0 {
		return "", 0, false
	}
	word = strings.ToUpper(fields[0])
	switch word {
	case "M104", "M109", "M140", "M190":
	default:
		return "", 0, false
	}
	for _, f := range fields[1:] {
		if len(f) >= 2 && (f[0] == 'S' || f[0] == 's') {
			v, err := strconv.ParseFloat(f[1:], 64)
			if err != nil {
				return "", 0, false
			}
			return word, v, true
		}
	}
	return "", 0, false
}

// sectionHints maps slicer ;TYPE: values onto segment kinds. Covers the
// Cura and PrusaSlicer vocabularies.
var sectionHints = map[string]schemas.SegmentKind{
	"WALL-OUTER":                 schemas.SegmentPerimeter,
	"WALL-INNER":                 schemas.SegmentPerimeter,
	"EXTERNAL PERIMETER":         schemas.SegmentPerimeter,
	"PERIMETER":                  schemas.SegmentPerimeter,
	"OVERHANG PERIMETER":         schemas.SegmentPerimeter,
	"FILL":                       schemas.SegmentInfill,
	"SKIN":                       schemas.SegmentInfill,
	"INTERNAL INFILL":            schemas.SegmentInfill,
	"SOLID INFILL":               schemas.SegmentInfill,
	"TOP SOLID INFILL":           schemas.SegmentInfill,
	"BRIDGE INFILL":              schemas.SegmentInfill,
	"SUPPORT":                    schemas.SegmentSupport,
	"SUPPORT-INTERFACE":          schemas.SegmentSupport,
	"SUPPORT MATERIAL":           schemas.SegmentSupport,
	"SUPPORT MATERIAL INTERFACE": schemas.SegmentSupport,
}

// scanMarkers walks the raw text once and collects layer and section
// markers in line order.
func scanMarkers(text string) ([]marker, bool) {
	var markers []marker
	hasLayer := false

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if !strings.HasPrefix(line, ";") {
			continue
		}
		comment := strings.TrimSpace(line[1:])
		upper := strings.ToUpper(comment)

		switch {
		case strings.HasPrefix(upper, "LAYER_COUNT:"):
			// Summary metadata, not a boundary.
		case strings.HasPrefix(upper, "LAYER:"), upper == "LAYER_CHANGE":
			markers = append(markers, marker{line: i + 1, layerStart: true})
			hasLayer = true
		case strings.HasPrefix(upper, "TYPE:"):
			hint := strings.TrimSpace(upper[len("TYPE:"):])
			if kind, ok := sectionHints[hint]; ok {
				markers = append(markers, marker{line: i + 1, section: kind})
			} else {
				markers = append(markers, marker{line: i + 1, section: schemas.SegmentUnknown})
			}
		}
	}

	sort.SliceStable(markers, func(a, b int) bool { return markers[a].line < markers[b].line })
	return markers, hasLayer
}
