// File: internal/normalize/patches_test.go
package normalize

import (
	encjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

func TestDecode_PatchTextIsByteForByte(t *testing.T) {
	n := newTestNormalizer(t)

	// Whitespace and casing must survive untouched; diff rendering
	// depends on exact equality with the source file.
	payload := encjson.RawMessage(`{
		"issues": [{"id": "i1", "type": "stringing", "line": 7, "is_defect": true}],
		"patches": [
			{"id": "p1", "issue_id": "i1", "line": 7, "action": "replace",
			 "original_line": "G1  X10\tY20 E0.50 ", "new_line": " g1 X10 Y20 E0.45"}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Patches, 1)
	assert.Equal(t, "G1  X10\tY20 E0.50 ", res.Patches[0].OriginalLine)
	assert.Equal(t, " g1 X10 Y20 E0.45", res.Patches[0].NewLine)
	assert.Equal(t, schemas.PatchReplace, res.Patches[0].Action)
	assert.Equal(t, "i1", res.Patches[0].IssueID)
}

func TestDecode_PatchActionVocabulary(t *testing.T) {
	n := newTestNormalizer(t)

	payload := encjson.RawMessage(`{
		"patches": [
			{"line": 1, "action": "insert", "new_line": "a"},
			{"line": 2, "action": "add", "new_line": "b"},
			{"line": 3, "action": "modify", "original_line": "c", "new_line": "d"},
			{"line": 4, "operation": "update", "original_line": "e", "new_line": "f"},
			{"line": 5, "action": "remove", "original_line": "g"},
			{"line": 6, "action": "transmogrify"}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Patches, 5) // the unknown action is skipped

	assert.Equal(t, schemas.PatchInsert, res.Patches[0].Action)
	assert.Equal(t, schemas.PatchInsert, res.Patches[1].Action)
	assert.Equal(t, schemas.PatchReplace, res.Patches[2].Action)
	assert.Equal(t, schemas.PatchReplace, res.Patches[3].Action)
	assert.Equal(t, schemas.PatchDelete, res.Patches[4].Action)
}

func TestDecode_PatchWithoutLineIsSkipped(t *testing.T) {
	n := newTestNormalizer(t)

	payload := encjson.RawMessage(`{
		"patches": [
			{"action": "replace", "original_line": "a", "new_line": "b"},
			{"line": 3, "action": "replace", "original_line": "c", "new_line": "d"}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Patches, 1)
	assert.Equal(t, 3, res.Patches[0].Line)
}

func TestDecode_DanglingIssueRefIsCleared(t *testing.T) {
	n := newTestNormalizer(t)

	// The patch references an issue the normalizer discarded as noise:
	// the patch survives, the backref does not.
	payload := encjson.RawMessage(`{
		"issues": [{"id": "noise-1", "type": "observation", "line": 5}],
		"patches": [
			{"line": 5, "action": "replace", "issue_id": "noise-1",
			 "original_line": "a", "new_line": "b"}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	require.Len(t, res.Patches, 1)
	assert.Empty(t, res.Patches[0].IssueID)
}

func TestDecode_PatchAutofixResolvers(t *testing.T) {
	n := newTestNormalizer(t)

	payload := encjson.RawMessage(`{
		"patches": [
			{"line": 1, "action": "replace", "original_line": "a", "new_line": "b", "autofix_allowed": true},
			{"line": 2, "action": "replace", "original_line": "c", "new_line": "d", "autofixable": true},
			{"line": 3, "action": "replace", "original_line": "e", "new_line": "f"}
		]
	}`)

	res, err := n.Decode(payload)
	require.NoError(t, err)
	require.Len(t, res.Patches, 3)
	assert.True(t, res.Patches[0].AutofixOK)
	assert.True(t, res.Patches[1].AutofixOK)
	assert.False(t, res.Patches[2].AutofixOK)
}
