// File: internal/report/assembler.go
package report

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
	"github.com/fdmtools/printdoctor-cli/internal/normalize"
)

// Inputs carries everything the assembler combines into a Report.
// Any of the optional inputs may be missing or partial: a parse warning
// or an empty issue list never prevents assembly.
type Inputs struct {
	FileName     string
	Metadata     schemas.Metadata
	Parse        *schemas.ParseResult
	Segmentation *schemas.SegmentationResult
	Normalized   *normalize.Result
}

// Assembler composes metrics, metadata, normalized issues and patches
// into the final Report. Assembly is deterministic: identical inputs
// always produce an identical report, apart from the analyzedAt stamp.
type Assembler struct {
	logger *zap.Logger
	// now is injectable so determinism can be asserted in tests.
	now func() time.Time
}

// NewAssembler creates a report assembler.
func NewAssembler(logger *zap.Logger) *Assembler {
	return &Assembler{
		logger: logger.Named("report-assembler"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Assemble builds the report aggregate. The grade is derived exactly
// once here and cached on the report.
func (a *Assembler) Assemble(in Inputs) *schemas.Report {
	rep := &schemas.Report{
		FileName:   in.FileName,
		AnalyzedAt: a.now(),
		Issues:     []schemas.Issue{},
		Patches:    []schemas.Patch{},
	}

	rep.Metrics = buildMetrics(in.Metadata, in.Segmentation)

	if in.Parse != nil {
		rep.Warnings = in.Parse.Warnings
	}
	if in.Segmentation != nil {
		rep.Notes = in.Segmentation.Notes
	}
	if in.Normalized != nil {
		if in.Normalized.Issues != nil {
			rep.Issues = in.Normalized.Issues
		}
		if in.Normalized.Patches != nil {
			rep.Patches = in.Normalized.Patches
		}
	}

	rep.Score = resolveScore(in.Normalized, rep.Issues)
	rep.Severity = SeverityForScore(rep.Score)
	rep.Grade = GradeForScore(rep.Score)
	rep.Guides = buildGuides(rep.Issues)

	a.logger.Info("Report assembled",
		zap.String("file", rep.FileName),
		zap.Float64("score", rep.Score),
		zap.String("grade", string(rep.Grade)),
		zap.Int("issues", len(rep.Issues)),
		zap.Int("patches", len(rep.Patches)))
	return rep
}

// buildMetrics merges slicer metadata with what segmentation observed.
// The slicer's own layer count wins when present.
func buildMetrics(meta schemas.Metadata, seg *schemas.SegmentationResult) schemas.Metrics {
	m := schemas.Metrics{
		PrintTimeSec:   meta.PrintTimeSec,
		FilamentUsedMM: meta.FilamentUsedMM,
	}
	if meta.LayerCount != nil {
		m.LayerCount = *meta.LayerCount
	} else if seg != nil {
		m.LayerCount = len(seg.Layers)
	}
	if seg != nil {
		m.RetractionCount = seg.RetractionCount
	}
	return m
}

// severityPenalty weights the score fallback when the analysis payload
// carries no score of its own.
var severityPenalty = map[schemas.Severity]float64{
	schemas.SeverityCritical: 25,
	schemas.SeverityHigh:     10,
	schemas.SeverityMedium:   5,
	schemas.SeverityLow:      2,
}

// resolveScore prefers the backend's overall score; absent that, a
// documented penalty heuristic over the issue list keeps the report
// renderable.
func resolveScore(normalized *normalize.Result, issues []schemas.Issue) float64 {
	if normalized != nil && normalized.Score != nil {
		return clampScore(*normalized.Score)
	}
	score := 100.0
	for _, issue := range issues {
		score -= severityPenalty[issue.Severity]
	}
	return clampScore(score)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// guideCatalog maps known issue types to remediation walkthroughs.
var guideCatalog = map[string]schemas.SolutionGuide{
	"stringing": {
		IssueType: "stringing",
		Title:     "Reduce stringing and oozing",
		Steps: []string{
			"Increase retraction distance in 0.5mm steps.",
			"Lower nozzle temperature by 5-10C.",
			"Enable travel moves over printed parts (combing).",
		},
	},
	"under_extrusion": {
		IssueType: "under_extrusion",
		Title:     "Fix under-extrusion",
		Steps: []string{
			"Check the nozzle for partial clogs and cold-pull if needed.",
			"Calibrate e-steps against a measured 100mm extrusion.",
			"Raise nozzle temperature by 5C to improve flow.",
		},
	},
	"over_extrusion": {
		IssueType: "over_extrusion",
		Title:     "Fix over-extrusion",
		Steps: []string{
			"Measure filament diameter and set it in the slicer.",
			"Lower the flow multiplier in 2% steps.",
		},
	},
	"temperature_swing": {
		IssueType: "temperature_swing",
		Title:     "Stabilize temperatures",
		Steps: []string{
			"Run PID autotune for the hotend.",
			"Shield the printer from drafts.",
		},
	},
	"excessive_retraction": {
		IssueType: "excessive_retraction",
		Title:     "Reduce retraction wear",
		Steps: []string{
			"Enable minimum travel for retraction in the slicer.",
			"Combine nearby infill regions to cut travel count.",
		},
	},
}

// buildGuides returns one guide per distinct issue type, sorted by type
// for deterministic output.
func buildGuides(issues []schemas.Issue) []schemas.SolutionGuide {
	seen := make(map[string]bool)
	var guides []schemas.SolutionGuide
	for _, issue := range issues {
		if issue.Type == "" || seen[issue.Type] {
			continue
		}
		seen[issue.Type] = true
		if guide, ok := guideCatalog[issue.Type]; ok {
			guides = append(guides, guide)
		}
	}
	sort.Slice(guides, func(i, j int) bool { return guides[i].IssueType < guides[j].IssueType })
	return guides
}
