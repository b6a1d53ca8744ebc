package schemas

import (
	"encoding/json"
	"time"
)

// -- Analysis Job Schemas --

// JobStatus is the lifecycle state of a remote analysis job. Transitions
// are monotonic: a terminal status never re-enters pending or running.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobError     JobStatus = "error"
	JobTimedOut  JobStatus = "timedOut"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobDone, JobError, JobTimedOut, JobCancelled:
		return true
	}
	return false
}

// JobSnapshot is an immutable view of an analysis job handed to
// subscribers. The owning controller is the only writer of job state;
// consumers only ever see copies.
type JobSnapshot struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Status      JobStatus `json:"status"`
	// Progress is clamped to [0,100].
	Progress    int       `json:"progress"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubmitResult is the analysis service's response to a submission.
// Segments are always ready synchronously; the server may additionally
// start a background analysis job identified by AnalysisID.
type SubmitResult struct {
	Status                    string          `json:"status"` // "segments_ready"
	AnalysisID                string          `json:"analysis_id,omitempty"`
	BackgroundAnalysisStarted bool            `json:"background_analysis_started"`
	Result                    json.RawMessage `json:"result,omitempty"`
}

// PollResponse is one poll of a background job.
type PollResponse struct {
	Status   JobStatus       `json:"status"`
	Progress int             `json:"progress"`
	Message  string          `json:"message"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// -- Normalized Issue / Patch Schemas --

// Issue is a normalized defect record at a specific location in the
// file. Backend payload shapes vary across versions; the normalizer
// maps them all onto this canonical model.
type Issue struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	// Line is the 1-based index into the original file.
	Line        int    `json:"line"`
	Layer       *int   `json:"layer,omitempty"`
	Section     string `json:"section,omitempty"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`

	// IsGrouped marks a pre-aggregated cluster of occurrences.
	// Invariant: IsGrouped implies GroupCount == len(MemberLines) >= 1.
	IsGrouped   bool  `json:"is_grouped"`
	GroupCount  int   `json:"group_count,omitempty"`
	MemberLines []int `json:"member_lines,omitempty"`
}

// PatchAction is the kind of textual repair a patch applies.
type PatchAction string

const (
	PatchInsert  PatchAction = "insert"
	PatchReplace PatchAction = "replace"
	PatchDelete  PatchAction = "delete"
)

// Patch is a suggested textual repair tied to an issue. OriginalLine
// and NewLine are preserved byte-for-byte: downstream diff rendering
// depends on exact content equality with the source file.
type Patch struct {
	ID           string      `json:"id"`
	IssueID      string      `json:"issue_id,omitempty"`
	Line         int         `json:"line"`
	Action       PatchAction `json:"action"`
	OriginalLine string      `json:"original_line"`
	NewLine      string      `json:"new_line"`
	Reason       string      `json:"reason,omitempty"`
	AutofixOK    bool        `json:"autofix_allowed"`
}
