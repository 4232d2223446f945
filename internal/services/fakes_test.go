package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Lllllllleong/permitauditor/internal/models"
)

// fakeOCR serves canned recognition text per page index.
type fakeOCR struct {
	texts      map[int]string
	dropMarker map[int]bool // pages whose marker is left out of batch responses
	failPage   map[int]bool // pages RecognizePage fails for
	batchErr   error
	pageCalls  atomic.Int32
	batchCalls atomic.Int32
}

func newFakeOCR(pageCount int) *fakeOCR {
	texts := make(map[int]string, pageCount)
	for i := 1; i <= pageCount; i++ {
		texts[i] = pageText(i)
	}
	return &fakeOCR{texts: texts, dropMarker: map[int]bool{}, failPage: map[int]bool{}}
}

func pageText(n int) string {
	if n == 1 {
		return "[DOCUMENT TYPE: GUIA BRANCA]\nPermissão de Trabalho PT-20451\nPágina 1\n"
	}
	return fmt.Sprintf("[DOCUMENT TYPE: GUIA BRANCA]\nPágina %d\nconteúdo da página %d\n", n, n)
}

func (f *fakeOCR) RecognizePage(ctx context.Context, page models.Page) (string, error) {
	f.pageCalls.Add(1)
	if f.failPage[page.Index] {
		return "", errors.New("ocr backend unavailable")
	}
	return f.texts[page.Index], nil
}

func (f *fakeOCR) RecognizeBatch(ctx context.Context, pages []models.Page) (string, error) {
	f.batchCalls.Add(1)
	if f.batchErr != nil {
		return "", f.batchErr
	}
	var b strings.Builder
	for _, p := range pages {
		if !f.dropMarker[p.Index] {
			b.WriteString(PageMarker(p.Index))
			b.WriteString("\n")
		}
		b.WriteString(f.texts[p.Index])
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (f *fakeOCR) calls() int {
	return int(f.pageCalls.Load() + f.batchCalls.Load())
}

// fakeJudge answers with a one-row findings table unless told otherwise.
type fakeJudge struct {
	fail    map[int]bool
	panicOn map[int]bool
	calls   atomic.Int32
	mu      sync.Mutex
	permits map[int]string
}

func newFakeJudge() *fakeJudge {
	return &fakeJudge{fail: map[int]bool{}, panicOn: map[int]bool{}, permits: map[int]string{}}
}

func (j *fakeJudge) Analyze(ctx context.Context, req JudgmentRequest) (string, error) {
	j.calls.Add(1)
	j.mu.Lock()
	j.permits[req.PageNumber] = req.PermitNumber
	j.mu.Unlock()
	if j.panicOn[req.PageNumber] {
		panic("judge exploded")
	}
	if j.fail[req.PageNumber] {
		return "", errors.New("judgment backend unavailable")
	}
	return fmt.Sprintf(`| Permit Number | Page Number | Page Summary | Section | Status | Comments |
|---|---|---|---|---|---|
| XXX-XXXXX | X | Página %d | 1 - Identificação | APROVADO | Campos preenchidos. |`, req.PageNumber), nil
}

func (j *fakeJudge) permitFor(page int) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.permits[page]
}

// memStore is an in-memory DurableStore.
type memStore struct {
	mu    sync.Mutex
	docs  map[string]map[int]string
	saves int
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]map[int]string{}}
}

func (m *memStore) Load(ctx context.Context, docID string) (map[int]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]string{}
	for k, v := range m.docs[docID] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SavePage(ctx context.Context, docID string, index int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[docID] == nil {
		m.docs[docID] = map[int]string{}
	}
	m.docs[docID][index] = text
	m.saves++
	return nil
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Load(ctx context.Context, docID string) (map[int]string, error) {
	return nil, errors.New("store offline")
}

func (failingStore) SavePage(ctx context.Context, docID string, index int, text string) error {
	return errors.New("store offline")
}

func testDocument(id string, pageCount int) models.Document {
	pages := make([]models.Page, pageCount)
	for i := range pages {
		pages[i] = models.Page{DocumentID: id, Index: i + 1, ImageRef: fmt.Sprintf("mem://%s/%d", id, i+1)}
	}
	return models.Document{ID: id, Pages: pages}
}
