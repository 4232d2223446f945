package models

// These structs define the JSON payloads accepted and returned by the
// auditor Cloud Functions.

// AuditMode selects how pages are scheduled.
type AuditMode string

const (
	ModeParallel   AuditMode = "parallel"
	ModeSequential AuditMode = "sequential"
)

// AuditRequest is the input for the permit-auditor function. The source PDF is
// named either by Bucket and Object or by a gs:// URI.
type AuditRequest struct {
	Bucket       string    `json:"bucket"`
	Object       string    `json:"object"`
	GCSURI       string    `json:"gcsUri,omitempty"`
	ExecutionID  string    `json:"executionId"`
	Mode         AuditMode `json:"mode"`
	StatusFilter []Status  `json:"statusFilter"`
}

// Progress is the {completed, in_progress, total} snapshot exposed to callers.
type Progress struct {
	Completed  int `json:"completed" firestore:"completed"`
	InProgress int `json:"inProgress" firestore:"inProgress"`
	Total      int `json:"total" firestore:"total"`
}

// AuditResponse is the output of the permit-auditor function.
type AuditResponse struct {
	Status         string         `json:"status"`
	DocumentID     string         `json:"documentId"`
	ExecutionID    string         `json:"executionId"`
	PermitNumber   string         `json:"permitNumber"`
	PageCount      int            `json:"pageCount"`
	Rows           []AnalysisRow  `json:"rows"`
	FilteredRows   []AnalysisRow  `json:"filteredRows"`
	Counts         map[Status]int `json:"counts"`
	FilteredCounts map[Status]int `json:"filteredCounts"`
	Progress       Progress       `json:"progress"`
}

// GCSEvent is the payload of a GCS object-finalize CloudEvent.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}
