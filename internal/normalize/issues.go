// File: internal/normalize/issues.go
package normalize

import (
	encjson "encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rawEnvelope is the tolerant wire shape of a completed analysis
// payload. Entries are kept as raw messages so one malformed element
// never discards the rest of the list.
type rawEnvelope struct {
	Score        *float64 `json:"score"`
	OverallScore *float64 `json:"overall_score"`
	QualityScore *float64 `json:"quality_score"`

	Issues  []encjson.RawMessage `json:"issues"`
	Patches []encjson.RawMessage `json:"patches"`
}

// rawIssue declares every candidate field any backend version has used
// for an issue. Resolution order lives in fields.go.
type rawIssue struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	IssueType string `json:"issue_type"`
	Category  string `json:"category"`
	Severity  string `json:"severity"`

	EventLine  *int `json:"event_line"`
	Line       *int `json:"line"`
	LineNumber *int `json:"line_number"`

	Layer      *int   `json:"layer"`
	LayerIndex *int   `json:"layer_index"`
	Section    string `json:"section"`

	Description string `json:"description"`
	Message     string `json:"message"`
	Detail      string `json:"detail"`
	Impact      string `json:"impact"`

	Suggestion     string `json:"suggestion"`
	Recommendation string `json:"recommendation"`
	Fix            string `json:"fix"`

	IsDefect *bool `json:"is_defect"`
	Defect   *bool `json:"defect"`

	IsGrouped  *bool `json:"is_grouped"`
	Grouped    *bool `json:"grouped"`
	GroupCount *int  `json:"group_count"`

	MemberLines []int `json:"member_lines"`
	GroupLines  []int `json:"group_lines"`
	Lines       []int `json:"lines"`
}

// Result is the canonical output of payload normalization.
type Result struct {
	// Score is the backend's overall quality score, when present.
	Score   *float64
	Issues  []schemas.Issue
	Patches []schemas.Patch
}

// Normalizer maps heterogeneous analysis payloads onto the canonical
// Issue and Patch models.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a payload normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger.Named("normalizer")}
}

// Decode normalizes a completed analysis payload. Malformed list
// entries are logged and skipped; missing optional fields resolve to
// absent values. Only the envelope itself failing to parse is an error.
func (n *Normalizer) Decode(raw encjson.RawMessage) (*Result, error) {
	if len(raw) == 0 {
		return &Result{}, nil
	}

	var envelope rawEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode analysis payload: %w", err)
	}

	result := &Result{}
	if score, ok := envelope.resolveScore(); ok {
		result.Score = &score
	}

	for i, msg := range envelope.Issues {
		issue, keep, err := n.normalizeIssue(msg)
		if err != nil {
			n.logger.Warn("Skipping malformed issue entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		if keep {
			result.Issues = append(result.Issues, issue)
		}
	}

	result.Patches = n.normalizePatches(envelope.Patches, result.Issues)
	return result, nil
}

// normalizeIssue maps one payload entry onto the canonical model.
// An issue is retained only when it signals a concrete defect or a
// grouped cluster; an entry with neither flag is noise.
func (n *Normalizer) normalizeIssue(msg encjson.RawMessage) (schemas.Issue, bool, error) {
	var raw rawIssue
	if err := json.Unmarshal(msg, &raw); err != nil {
		return schemas.Issue{}, false, err
	}

	defect := raw.resolveDefectFlag()
	grouped := raw.resolveGroupedFlag()
	if !defect && !grouped {
		return schemas.Issue{}, false, nil
	}

	line, _ := raw.resolveLine()

	issue := schemas.Issue{
		ID:          raw.ID,
		Type:        raw.resolveType(),
		Severity:    mapSeverity(raw.Severity),
		Line:        line,
		Layer:       raw.resolveLayer(),
		Section:     raw.Section,
		Description: raw.resolveDescription(),
		Impact:      raw.Impact,
		Suggestion:  raw.resolveSuggestion(),
	}
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}

	if grouped {
		members := raw.resolveMemberLines()
		if len(members) == 0 {
			// A grouped issue with no member list degrades to a
			// singleton cluster at its own line.
			members = []int{line}
		}
		issue.IsGrouped = true
		issue.MemberLines = members
		// The count must equal the member list; a mismatched count from
		// the backend is corrected, not trusted.
		issue.GroupCount = len(members)
		if raw.GroupCount != nil && *raw.GroupCount != len(members) {
			n.logger.Debug("Backend group_count disagrees with member list",
				zap.String("issue_id", issue.ID),
				zap.Int("group_count", *raw.GroupCount),
				zap.Int("members", len(members)))
		}
	}

	return issue, true, nil
}

// mapSeverity folds the backend severity vocabulary onto the canonical
// bands.
func mapSeverity(s string) schemas.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "fatal":
		return schemas.SeverityCritical
	case "high", "error", "major":
		return schemas.SeverityHigh
	case "medium", "warning", "moderate":
		return schemas.SeverityMedium
	case "low", "info", "minor", "":
		return schemas.SeverityLow
	default:
		return schemas.SeverityLow
	}
}
