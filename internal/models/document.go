package models

import "time"

// Document is a permit PDF identified by the sha256 of its raw bytes.
// It is immutable: uploading the same bytes again yields the same ID.
type Document struct {
	ID         string
	SourceURI  string
	Context    string // document-level summary passed to every analysis call
	Pages      []Page
	UploadedAt time.Time
}

// Page is one page of a Document. ImageRef is an opaque handle the OCR
// capability understands (a gs:// URI of the single-page PDF in production).
// A page's recognition text lives in the FingerprintCache keyed by
// (DocumentID, Index), and its recognition status is the scheduler's per-page
// state (Job.PageState) and PageResult.OCRStatus.
type Page struct {
	DocumentID string
	Index      int // 1-based
	ImageRef   string
}

// OCRCacheRecord is the durable cache entry for a document in Firestore.
// Pages is keyed by the decimal page index because Firestore map keys are strings.
type OCRCacheRecord struct {
	Pages     map[string]string `firestore:"pages,omitempty"`
	UpdatedAt time.Time         `firestore:"updatedAt,omitempty"`
	ExpireAt  time.Time         `firestore:"expireAt,omitempty"` // Firestore TTL field
}

// AuditRecord is the Firestore record of one audit execution.
type AuditRecord struct {
	DocumentID   string         `firestore:"documentId"`
	ExecutionID  string         `firestore:"executionId"`
	SourceURI    string         `firestore:"sourceUri"`
	Mode         AuditMode      `firestore:"mode"`
	Status       string         `firestore:"status"`
	PageCount    int            `firestore:"pageCount"`
	PermitNumber string         `firestore:"permitNumber,omitempty"`
	Progress     Progress       `firestore:"progress"`
	Rows         []AnalysisRow  `firestore:"rows,omitempty"`
	Counts       map[Status]int `firestore:"counts,omitempty"`
	ErrorDetails string         `firestore:"errorDetails,omitempty"`
	CreatedAt    time.Time      `firestore:"createdAt"`
	UpdatedAt    time.Time      `firestore:"updatedAt"`
}

// Audit record lifecycle values.
const (
	AuditStatusProcessing = "PROCESSING"
	AuditStatusCompleted  = "COMPLETED"
	AuditStatusFailed     = "FAILED"
)
