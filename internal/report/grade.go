// File: internal/report/grade.go
package report

import "github.com/fdmtools/printdoctor-cli/api/schemas"

// SeverityForScore is the fixed banding of the overall score. The steps
// are an exactly reproduced contract with report consumers:
// score < 30 critical, < 50 high, < 70 medium, otherwise low.
func SeverityForScore(score float64) schemas.Severity {
	switch {
	case score < 30:
		return schemas.SeverityCritical
	case score < 50:
		return schemas.SeverityHigh
	case score < 70:
		return schemas.SeverityMedium
	default:
		return schemas.SeverityLow
	}
}

// gradeStep is one row of the versioned letter-grade table.
type gradeStep struct {
	min   float64
	grade schemas.Grade
}

// gradeTableV1 is the externally versioned score-to-letter contract.
// Rows are ordered by descending threshold; derivation is monotonic.
var gradeTableV1 = []gradeStep{
	{97, "A+"},
	{93, "A"},
	{90, "A-"},
	{87, "B+"},
	{83, "B"},
	{80, "B-"},
	{77, "C+"},
	{73, "C"},
	{70, "C-"},
	{60, "D"},
	{0, "F"},
}

// GradeForScore derives the letter grade for a score in [0,100]. The
// assembler calls this exactly once per report and caches the result;
// nothing else recomputes grades ad hoc.
func GradeForScore(score float64) schemas.Grade {
	for _, step := range gradeTableV1 {
		if score >= step.min {
			return step.grade
		}
	}
	return "F"
}
