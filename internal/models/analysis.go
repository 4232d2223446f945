package models

import "strings"

// Status is the verdict attached to one audited section. The set is closed:
// anything the judgment model says is coerced into one of these four values.
type Status string

const (
	StatusApproved           Status = "APROVADO"
	StatusRejected           Status = "REPROVADO"
	StatusHumanCheckRequired Status = "CHECAGEM HUMANA NECESSARIA"
	StatusNotApplicable      Status = "N/A"
)

// AllStatuses lists the canonical statuses in display order.
var AllStatuses = []Status{StatusApproved, StatusRejected, StatusHumanCheckRequired, StatusNotApplicable}

// DefaultStatusFilter hides N/A rows, matching what auditors see unless they ask otherwise.
var DefaultStatusFilter = []Status{StatusApproved, StatusRejected, StatusHumanCheckRequired}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	for _, c := range AllStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// statusAliases maps lowercase fragments to a status. Order matters: negative
// verdicts are checked before positive ones so "disapproved" never reads as approved.
var statusAliases = []struct {
	fragment string
	status   Status
}{
	{"não aprovado", StatusRejected},
	{"nao aprovado", StatusRejected},
	{"not approved", StatusRejected},
	{"disapproved", StatusRejected},
	{"reprovado", StatusRejected},
	{"reproved", StatusRejected},
	{"rejected", StatusRejected},
	{"checagem humana", StatusHumanCheckRequired},
	{"human check", StatusHumanCheckRequired},
	{"human verification", StatusHumanCheckRequired},
	{"n/a", StatusNotApplicable},
	{"não aplicável", StatusNotApplicable},
	{"nao aplicavel", StatusNotApplicable},
	{"not applicable", StatusNotApplicable},
	{"aprovado", StatusApproved},
	{"approved", StatusApproved},
}

// ParseStatus coerces free text into the closed status set. Unrecognised input
// becomes StatusHumanCheckRequired.
func ParseStatus(raw string) Status {
	if s, ok := matchStatus(raw); ok {
		return s
	}
	return StatusHumanCheckRequired
}

// LooksLikeStatus reports whether raw names a status, as opposed to free text
// that ParseStatus would only coerce to the default.
func LooksLikeStatus(raw string) bool {
	_, ok := matchStatus(raw)
	return ok
}

func matchStatus(raw string) (Status, bool) {
	trimmed := strings.TrimSpace(raw)
	if s := Status(strings.ToUpper(trimmed)); s.Valid() {
		return s, true
	}
	lower := strings.ToLower(trimmed)
	for _, alias := range statusAliases {
		if strings.Contains(lower, alias.fragment) {
			return alias.status, true
		}
	}
	return "", false
}

// DocumentContentSection labels rows that describe the whole page rather than a form section.
const DocumentContentSection = "Conteúdo do Documento"

// UnknownPermit is used when no permit identifier could be found.
const UnknownPermit = "Desconhecido"

// AnalysisRow is one line of the findings table.
type AnalysisRow struct {
	PermitNumber string `json:"permitNumber" firestore:"permitNumber"`
	PageNumber   int    `json:"pageNumber" firestore:"pageNumber"`
	PageSummary  string `json:"pageSummary" firestore:"pageSummary"`
	Section      string `json:"section" firestore:"section"`
	Status       Status `json:"status" firestore:"status"`
	Comments     string `json:"comments" firestore:"comments"`
}

// WithVerdict returns a copy of the row carrying a new status and comment.
func (r AnalysisRow) WithVerdict(status Status, comments string) AnalysisRow {
	r.Status = status
	r.Comments = comments
	return r
}

// StageStatus tracks one stage (OCR or analysis) of a page.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageDone       StageStatus = "done"
	StageFailed     StageStatus = "failed"
)

// PageResult is what the scheduler hands over once a page is completed.
type PageResult struct {
	PageNumber     int           `json:"pageNumber"`
	Rows           []AnalysisRow `json:"rows"`
	OCRStatus      StageStatus   `json:"ocrStatus"`
	AnalysisStatus StageStatus   `json:"analysisStatus"`
	Error          string        `json:"error,omitempty"`
	Completed      bool          `json:"completed"`
}

// DocumentResult collects every page result of a document, in completion order.
type DocumentResult struct {
	DocumentID   string       `json:"documentId"`
	PermitNumber string       `json:"permitNumber"`
	Pages        []PageResult `json:"pages"`
}
