package schemas

// -- G-code Motion Schemas --

// CommandKind distinguishes the small set of motion commands the parser
// understands from everything else in the file.
type CommandKind string

const (
	CommandRapid  CommandKind = "rapid"  // G0 travel move.
	CommandLinear CommandKind = "linear" // G1 printing/travel move.
	CommandOther  CommandKind = "other"  // Any line the parser does not extract coordinates from.
)

// MotionCommand is a single parsed G-code command with fully resolved
// absolute coordinates. Unspecified axes carry the last known value
// forward, so every command is self-contained regardless of the source
// file's positioning mode. Immutable once parsed.
type MotionCommand struct {
	Kind CommandKind `json:"kind"`

	// Absolute target position after this command executes.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	// E is the absolute extruder position in millimeters of filament.
	E float64 `json:"e"`

	// Feed is the last commanded feed rate in mm/min.
	Feed float64 `json:"feed"`

	// Line is the 1-based line index in the original file. Later issue
	// and patch linking round-trips against this index.
	Line int `json:"line"`

	// Raw preserves the source line verbatim.
	Raw string `json:"raw"`
}

// Point is a position on the build plate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SegmentKind classifies a contiguous run of motion within a layer.
// Values are lowercase to align with the report JSON contract.
type SegmentKind string

const (
	SegmentPerimeter SegmentKind = "perimeter"
	SegmentInfill    SegmentKind = "infill"
	SegmentTravel    SegmentKind = "travel"
	SegmentWipe      SegmentKind = "wipe"
	SegmentSupport   SegmentKind = "support"
	SegmentUnknown   SegmentKind = "unknown"
)

// Segment is an ordered, classified run of motion inside one layer.
type Segment struct {
	Kind      SegmentKind `json:"kind"`
	Points    []Point     `json:"points"`
	Extruding bool        `json:"extruding"`
	// StartLine and EndLine are 1-based source line indices bounding
	// the commands that produced this segment.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Layer is a horizontal slice of the print. Layers are indexed
// contiguously from zero and never mutated after segmentation.
type Layer struct {
	Index    int       `json:"index"`
	Z        float64   `json:"z"`
	Segments []Segment `json:"segments"`
}

// TemperatureSample records the commanded nozzle/bed temperatures in
// effect at a given layer. Nil means no command was seen.
type TemperatureSample struct {
	Layer  int      `json:"layer"`
	Nozzle *float64 `json:"nozzle,omitempty"`
	Bed    *float64 `json:"bed,omitempty"`
}

// ParseWarning records a malformed token encountered while parsing.
// Warnings are non-fatal: the offending axis keeps its carry-forward
// value and parsing continues.
type ParseWarning struct {
	Line    int    `json:"line"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Metadata holds slicer-emitted summary values scanned from comments.
// Nil fields mean the marker was absent, which is not an error.
type Metadata struct {
	LayerCount     *int     `json:"layer_count,omitempty"`
	PrintTimeSec   *int     `json:"print_time_sec,omitempty"`
	FilamentUsedMM *float64 `json:"filament_used_mm,omitempty"`
	LayerHeightMM  *float64 `json:"layer_height_mm,omitempty"`
}

// AmbiguityNote records a move the segmenter could not confidently
// classify. The move is kept with SegmentUnknown rather than dropped.
type AmbiguityNote struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseResult is the output of a single parse pass.
type ParseResult struct {
	Commands []MotionCommand `json:"commands"`
	Warnings []ParseWarning  `json:"warnings,omitempty"`
}

// SegmentationResult owns the per-layer structure produced from a
// ParseResult. Read-only after creation.
type SegmentationResult struct {
	Layers       []Layer             `json:"layers"`
	Temperatures []TemperatureSample `json:"temperatures,omitempty"`
	Notes        []AmbiguityNote     `json:"notes,omitempty"`
	// RetractionCount is the number of extruder reversals observed
	// across the whole file.
	RetractionCount int `json:"retraction_count"`
}
