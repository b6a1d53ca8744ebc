// File: internal/normalize/fields.go
package normalize

// Backend payload shapes vary across analysis service versions: the
// same concept arrives under different field names depending on which
// backend produced it. Each concept gets one named resolver with an
// explicit priority order, tested in fields_test.go, instead of ad hoc
// fallback chains scattered across call sites.

// firstString returns the first non-empty candidate.
func firstString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// firstInt returns the first present candidate.
func firstInt(candidates ...*int) (int, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return 0, false
}

// firstBool returns the first present candidate.
func firstBool(candidates ...*bool) (bool, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return false, false
}

// firstIntSlice returns the first non-empty candidate.
func firstIntSlice(candidates ...[]int) []int {
	for _, c := range candidates {
		if len(c) > 0 {
			return c
		}
	}
	return nil
}

// firstFloat returns the first present candidate.
func firstFloat(candidates ...*float64) (float64, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return 0, false
}

// -- Per-concept resolvers --

// resolveIssueLine: the event-specific line takes precedence over the
// generic line fields.
func (r *rawIssue) resolveLine() (int, bool) {
	return firstInt(r.EventLine, r.Line, r.LineNumber)
}

func (r *rawIssue) resolveType() string {
	return firstString(r.Type, r.IssueType, r.Category)
}

func (r *rawIssue) resolveDescription() string {
	return firstString(r.Description, r.Message, r.Detail)
}

func (r *rawIssue) resolveSuggestion() string {
	return firstString(r.Suggestion, r.Recommendation, r.Fix)
}

func (r *rawIssue) resolveLayer() *int {
	if v, ok := firstInt(r.Layer, r.LayerIndex); ok {
		return &v
	}
	return nil
}

func (r *rawIssue) resolveMemberLines() []int {
	return firstIntSlice(r.MemberLines, r.GroupLines, r.Lines)
}

func (r *rawIssue) resolveDefectFlag() bool {
	v, _ := firstBool(r.IsDefect, r.Defect)
	return v
}

func (r *rawIssue) resolveGroupedFlag() bool {
	v, _ := firstBool(r.IsGrouped, r.Grouped)
	return v
}

func (r *rawPatch) resolveLine() (int, bool) {
	return firstInt(r.Line, r.LineNumber)
}

func (r *rawPatch) resolveIssueID() string {
	return firstString(r.IssueID, r.IssueRef)
}

func (r *rawPatch) resolveOriginal() string {
	return firstString(r.OriginalLine, r.Original, r.OldLine)
}

func (r *rawPatch) resolveNew() string {
	return firstString(r.NewLine, r.New, r.Replacement)
}

func (r *rawPatch) resolveAutofix() bool {
	v, _ := firstBool(r.AutofixAllowed, r.AutoFix, r.Autofixable)
	return v
}

func (e *rawEnvelope) resolveScore() (float64, bool) {
	return firstFloat(e.Score, e.OverallScore, e.QualityScore)
}
