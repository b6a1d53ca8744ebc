package schemas

import "time"

// -- Report Schemas --

// Severity represents the severity band of an issue or of the report
// as a whole. The values are lowercase to align with database ENUMs.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Grade is the categorical letter grade derived from the numeric score.
// The letter/threshold mapping is a versioned contract owned by the
// report package; the assembler computes it once and caches it here.
type Grade string

// Metrics summarizes the print job itself, independent of quality
// findings. Nil fields mean the slicer did not emit the marker.
type Metrics struct {
	PrintTimeSec    *int     `json:"print_time_sec,omitempty"`
	FilamentUsedMM  *float64 `json:"filament_used_mm,omitempty"`
	LayerCount      int      `json:"layer_count"`
	RetractionCount int      `json:"retraction_count"`
}

// SolutionGuide is a remediation walkthrough attached to the report for
// a class of issues.
type SolutionGuide struct {
	IssueType string   `json:"issue_type"`
	Title     string   `json:"title"`
	Steps     []string `json:"steps"`
}

// Report is the final aggregate of one completed analysis. It is
// assembled once and immutable afterwards, except for the Saved flag
// and SavedID which the persistence collaborator's acknowledgment sets.
type Report struct {
	FileName   string    `json:"file_name"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Metrics Metrics `json:"metrics"`

	// Score is in [0,100]. Severity is the fixed banding of the score;
	// Grade is the separately versioned letter mapping.
	Score    float64  `json:"score"`
	Severity Severity `json:"severity"`
	Grade    Grade    `json:"grade"`

	Issues  []Issue         `json:"issues"`
	Patches []Patch         `json:"patches"`
	Guides  []SolutionGuide `json:"solution_guides,omitempty"`

	Warnings []ParseWarning  `json:"parse_warnings,omitempty"`
	Notes    []AmbiguityNote `json:"segmentation_notes,omitempty"`

	// Saved/SavedID record the persistence collaborator's acknowledgment.
	Saved   bool   `json:"saved"`
	SavedID string `json:"saved_id,omitempty"`
}
