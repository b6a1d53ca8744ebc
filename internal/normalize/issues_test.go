// File: internal/normalize/issues_test.go
package normalize

import (
	encjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return NewNormalizer(zaptest.NewLogger(t))
}

func TestDecode_EmptyPayload(t *testing.T) {
	n := newTestNormalizer(t)

	res, err := n.Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, res.Score)
	assert.Empty(t, res.Issues)
	assert.Empty(t, res.Patches)
}

func TestDecode_MalformedEnvelopeIsAnError(t *testing.T) {
	n := newTestNormalizer(t)

	_, err := n.Decode(encjson.RawMessage(`{"issues": [`))
	assert.Error(t, err)
}

func TestDecode_DiscardsNonDefectNoise(t *testing.T) {
	n := newTestNormalizer(t)

	payload := encjson.RawMessage(`{
		"issues": [
			{"id": "keep-1", "type": "stringing", "line": 10, "is_defect": true},
			{"id": "drop-1", "type": "observation", "line": 11},
			{"id": "drop-2", "type": "observation", "line": 12, "is_defect": false, "grouped": false},
			{"id": "keep-2", "type": "zits", "line": 13, "grouped": true, "member_lines": [13, 15]}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, "keep-1", res.Issues[0].ID)
	assert.Equal(t, "keep-2", res.Issues[1].ID)
}

func TestDecode_GroupedInvariant(t *testing.T) {
	n := newTestNormalizer(t)

	payload := encjson.RawMessage(`{
		"issues": [
			{"id": "g1", "type": "zits", "line": 40, "is_grouped": true,
			 "member_lines": [40, 44, 48], "group_count": 7},
			{"id": "g2", "type": "zits", "line": 90, "is_grouped": true}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Issues, 2)

	// The count always equals the member list, even when the backend
	// disagrees.
	g1 := res.Issues[0]
	assert.True(t, g1.IsGrouped)
	assert.Equal(t, []int{40, 44, 48}, g1.MemberLines)
	assert.Equal(t, 3, g1.GroupCount)

	// A grouped issue without members degrades to a singleton cluster.
	g2 := res.Issues[1]
	assert.Equal(t, []int{90}, g2.MemberLines)
	assert.Equal(t, 1, g2.GroupCount)
}

func TestDecode_MalformedEntrySkippedOthersKept(t *testing.T) {
	n := newTestNormalizer(t)

	payload := encjson.RawMessage(`{
		"issues": [
			{"id": "ok", "type": "stringing", "line": 5, "is_defect": true},
			{"id": "bad", "line": "not-a-number", "is_defect": true},
			{"id": "ok2", "type": "blobs", "line": 6, "is_defect": true}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, "ok", res.Issues[0].ID)
	assert.Equal(t, "ok2", res.Issues[1].ID)
}

func TestDecode_MissingIDGetsGenerated(t *testing.T) {
	n := newTestNormalizer(t)

	payload := encjson.RawMessage(`{"issues": [{"type": "stringing", "line": 5, "is_defect": true}]}`)
	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.NotEmpty(t, res.Issues[0].ID)
}

func TestMapSeverity(t *testing.T) {
	tests := map[string]schemas.Severity{
		"critical": schemas.SeverityCritical,
		"FATAL":    schemas.SeverityCritical,
		"high":     schemas.SeverityHigh,
		"error":    schemas.SeverityHigh,
		"major":    schemas.SeverityHigh,
		"medium":   schemas.SeverityMedium,
		"warning":  schemas.SeverityMedium,
		"low":      schemas.SeverityLow,
		"info":     schemas.SeverityLow,
		"":         schemas.SeverityLow,
		"novel":    schemas.SeverityLow,
	}
	for in, want := range tests {
		assert.Equal(t, want, mapSeverity(in), in)
	}
}

func TestDecode_AlternateFieldNames(t *testing.T) {
	n := newTestNormalizer(t)

	// An older backend shape: different names, same concepts.
	payload := encjson.RawMessage(`{
		"overall_score": 72.5,
		"issues": [
			{"issue_type": "under_extrusion", "event_line": 31, "layer_index": 4,
			 "message": "flow dropped", "recommendation": "raise temp", "defect": true}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.NotNil(t, res.Score)
	assert.Equal(t, 72.5, *res.Score)

	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	assert.Equal(t, "under_extrusion", issue.Type)
	assert.Equal(t, 31, issue.Line)
	require.NotNil(t, issue.Layer)
	assert.Equal(t, 4, *issue.Layer)
	assert.Equal(t, "flow dropped", issue.Description)
	assert.Equal(t, "raise temp", issue.Suggestion)
}
