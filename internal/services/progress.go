package services

import (
	"sync"

	"github.com/Lllllllleong/permitauditor/internal/models"
)

// PageState is a page's position in the scheduler's state machine.
type PageState string

const (
	StatePending           PageState = "pending"
	StateOCRSubmitted      PageState = "ocr_submitted"
	StateOCRDone           PageState = "ocr_done"
	StateOCRError          PageState = "ocr_error"
	StateAnalysisSubmitted PageState = "analysis_submitted"
	StateAnalysisDone      PageState = "analysis_done"
	StateAnalysisError     PageState = "analysis_error"
	StateCompleted         PageState = "completed"
)

// tracker holds per-page state and the progress counters. Safe for
// concurrent use by workers.
type tracker struct {
	mu         sync.RWMutex
	states     map[int]PageState
	inFlight   map[int]bool
	total      int
	completed  int
	inProgress int
}

func newTracker(pages []models.Page) *tracker {
	t := &tracker{
		states:   make(map[int]PageState, len(pages)),
		inFlight: make(map[int]bool, len(pages)),
		total:    len(pages),
	}
	for _, p := range pages {
		t.states[p.Index] = StatePending
	}
	return t
}

// set moves a page to state. Completed is terminal.
func (t *tracker) set(page int, state PageState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[page] == StateCompleted {
		return
	}
	t.states[page] = state
	switch state {
	case StateAnalysisSubmitted:
		if !t.inFlight[page] {
			t.inFlight[page] = true
			t.inProgress++
		}
	case StateCompleted:
		if t.inFlight[page] {
			delete(t.inFlight, page)
			t.inProgress--
		}
		t.completed++
	}
}

func (t *tracker) state(page int) PageState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[page]
}

func (t *tracker) snapshot() models.Progress {
	if t == nil {
		return models.Progress{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return models.Progress{Completed: t.completed, InProgress: t.inProgress, Total: t.total}
}

// ProcessingContext carries document-scoped state shared by a run's workers.
// The permit number has a single writer (the unit processing page 1); readers
// block until it has been published or their context ends.
type ProcessingContext struct {
	DocumentID string
	Summary    string

	once   sync.Once
	ready  chan struct{}
	permit string
}

func NewProcessingContext(docID, summary string) *ProcessingContext {
	return &ProcessingContext{DocumentID: docID, Summary: summary, ready: make(chan struct{})}
}

// PublishPermit records the document identifier. Only the first call has effect.
func (p *ProcessingContext) PublishPermit(permit string) {
	p.once.Do(func() {
		p.permit = permit
		close(p.ready)
	})
}

// PermitNumber waits for the identifier to be published. It returns "" if
// done fires first or nothing was found.
func (p *ProcessingContext) PermitNumber(done <-chan struct{}) string {
	select {
	case <-p.ready:
		return p.permit
	default:
	}
	select {
	case <-p.ready:
		return p.permit
	case <-done:
		return ""
	}
}
