// File: internal/normalize/patches.go
package normalize

import (
	encjson "encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// rawPatch declares every candidate field any backend version has used
// for a patch. Resolution order lives in fields.go.
type rawPatch struct {
	ID string `json:"id"`

	IssueID  string `json:"issue_id"`
	IssueRef string `json:"issue_ref"`

	Line       *int `json:"line"`
	LineNumber *int `json:"line_number"`

	Action    string `json:"action"`
	Operation string `json:"operation"`

	OriginalLine string `json:"original_line"`
	Original     string `json:"original"`
	OldLine      string `json:"old_line"`

	NewLine     string `json:"new_line"`
	New         string `json:"new"`
	Replacement string `json:"replacement"`

	Reason string `json:"reason"`

	AutofixAllowed *bool `json:"autofix_allowed"`
	AutoFix        *bool `json:"auto_fix"`
	Autofixable    *bool `json:"autofixable"`
}

// normalizePatches maps patch entries onto the canonical model,
// cross-referencing issue IDs when the backend provides them. Original
// and replacement text pass through byte-for-byte: downstream diff
// presentation depends on exact content equality with the source file.
func (n *Normalizer) normalizePatches(msgs []encjson.RawMessage, issues []schemas.Issue) []schemas.Patch {
	knownIssues := make(map[string]bool, len(issues))
	for _, issue := range issues {
		knownIssues[issue.ID] = true
	}

	var patches []schemas.Patch
	for i, msg := range msgs {
		var raw rawPatch
		if err := json.Unmarshal(msg, &raw); err != nil {
			n.logger.Warn("Skipping malformed patch entry", zap.Int("index", i), zap.Error(err))
			continue
		}

		action, ok := mapAction(firstString(raw.Action, raw.Operation))
		if !ok {
			n.logger.Warn("Skipping patch with unknown action",
				zap.Int("index", i), zap.String("action", raw.Action))
			continue
		}

		line, hasLine := raw.resolveLine()
		if !hasLine {
			n.logger.Warn("Skipping patch without a line index", zap.Int("index", i))
			continue
		}

		patch := schemas.Patch{
			ID:           raw.ID,
			IssueID:      raw.resolveIssueID(),
			Line:         line,
			Action:       action,
			OriginalLine: raw.resolveOriginal(),
			NewLine:      raw.resolveNew(),
			Reason:       raw.Reason,
			AutofixOK:    raw.resolveAutofix(),
		}
		if patch.ID == "" {
			patch.ID = uuid.NewString()
		}
		if patch.IssueID != "" && !knownIssues[patch.IssueID] {
			// The backref points at an issue we discarded as noise;
			// keep the patch but drop the dangling reference.
			patch.IssueID = ""
		}

		patches = append(patches, patch)
	}
	return patches
}

// mapAction folds the backend action vocabulary onto the canonical set.
func mapAction(s string) (schemas.PatchAction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert", "add":
		return schemas.PatchInsert, true
	case "replace", "modify", "update":
		return schemas.PatchReplace, true
	case "delete", "remove":
		return schemas.PatchDelete, true
	default:
		return "", false
	}
}
