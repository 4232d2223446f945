package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/permitauditor/internal/models"
	"golang.org/x/sync/errgroup"
)

// OCRCapability turns page images into recognition text. RecognizeBatch must
// prefix each page's text with PageMarker(page.Index).
type OCRCapability interface {
	RecognizePage(ctx context.Context, page models.Page) (string, error)
	RecognizeBatch(ctx context.Context, pages []models.Page) (string, error)
}

// JudgmentRequest is everything the judgment model sees for one page.
type JudgmentRequest struct {
	RecognitionText string
	DocumentContext string
	PageNumber      int
	PermitNumber    string
}

// JudgmentCapability produces a markdown findings table for one page.
type JudgmentCapability interface {
	Analyze(ctx context.Context, req JudgmentRequest) (string, error)
}

// Scheduler drives batch OCR and then per-page analysis over bounded worker pools.
type Scheduler struct {
	ocr         OCRCapability
	judge       JudgmentCapability
	cache       *FingerprintCache
	logger      *slog.Logger
	callTimeout time.Duration

	// OnPageComplete, when set, is called once per page as pages finish, in
	// completion order and never concurrently.
	OnPageComplete func(models.PageResult, models.Progress)
}

func NewScheduler(ocr OCRCapability, judge JudgmentCapability, cache *FingerprintCache, logger *slog.Logger, callTimeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewFingerprintCache(nil, 24*time.Hour, logger)
	}
	return &Scheduler{ocr: ocr, judge: judge, cache: cache, logger: logger, callTimeout: callTimeout}
}

// Job is one document run. Progress may be read while the job is running.
type Job struct {
	tracker *tracker
	done    chan struct{}
	result  *models.DocumentResult
	err     error
}

// Progress returns the {completed, in_progress, total} snapshot.
func (j *Job) Progress() models.Progress { return j.tracker.snapshot() }

// PageState returns the lifecycle state of one page.
func (j *Job) PageState(page int) PageState { return j.tracker.state(page) }

// Wait blocks until every page is completed.
func (j *Job) Wait() (*models.DocumentResult, error) {
	<-j.done
	return j.result, j.err
}

// Run processes doc to completion.
func (s *Scheduler) Run(ctx context.Context, doc models.Document, plan Plan) (*models.DocumentResult, error) {
	return s.Start(ctx, doc, plan).Wait()
}

// Start launches processing of doc in the background.
func (s *Scheduler) Start(ctx context.Context, doc models.Document, plan Plan) *Job {
	pages := make([]models.Page, len(doc.Pages))
	copy(pages, doc.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	job := &Job{tracker: newTracker(pages), done: make(chan struct{})}
	go func() {
		defer close(job.done)
		job.result, job.err = s.run(ctx, doc, pages, plan, job.tracker)
	}()
	return job
}

func (s *Scheduler) run(ctx context.Context, doc models.Document, pages []models.Page, plan Plan, t *tracker) (*models.DocumentResult, error) {
	if plan.BatchSize < 1 || plan.OCRWorkers < 1 || plan.AnalysisWorkers < 1 {
		return nil, fmt.Errorf("invalid plan %+v", plan)
	}
	logCtx := s.logger.With("documentId", doc.ID)
	logCtx.Info("Starting page scheduling.", "pageCount", len(pages), "batchSize", plan.BatchSize,
		"ocrWorkers", plan.OCRWorkers, "analysisWorkers", plan.AnalysisWorkers)

	texts := s.recognize(ctx, logCtx, doc.ID, pages, plan, t)

	pc := NewProcessingContext(doc.ID, doc.Context)
	if len(pages) == 0 || pages[0].Index != 1 {
		pc.PublishPermit(ExtractPermitNumber(doc.Context))
	}

	out := make(chan models.PageResult, len(pages))
	go func() {
		g := new(errgroup.Group)
		g.SetLimit(plan.AnalysisWorkers)
		for _, page := range pages {
			page := page
			text := texts[page.Index]
			g.Go(func() error {
				t.set(page.Index, StateAnalysisSubmitted)
				out <- s.analyzePage(ctx, logCtx, doc.ID, pc, page, text, t)
				return nil
			})
		}
		_ = g.Wait()
		close(out)
	}()

	result := &models.DocumentResult{DocumentID: doc.ID}
	for r := range out {
		t.set(r.PageNumber, StateCompleted)
		result.Pages = append(result.Pages, r)
		if s.OnPageComplete != nil {
			s.OnPageComplete(r, t.snapshot())
		}
	}
	result.PermitNumber = pc.PermitNumber(closedChan)

	logCtx.Info("All pages completed.", "pageCount", len(result.Pages))
	return result, ctx.Err()
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// recognize fills in recognition text from the cache and batch OCR. Pages
// absent from the returned map still need an individual OCR call.
func (s *Scheduler) recognize(ctx context.Context, logCtx *slog.Logger, docID string, pages []models.Page, plan Plan, t *tracker) map[int]string {
	texts := make(map[int]string, len(pages))
	var mu sync.Mutex

	var pending []models.Page
	for _, page := range pages {
		if text, ok := s.cache.Get(ctx, docID, page.Index); ok && strings.TrimSpace(text) != "" {
			texts[page.Index] = text
			t.set(page.Index, StateOCRDone)
			continue
		}
		pending = append(pending, page)
	}
	logCtx.Info("OCR cache lookup complete.", "cachedPages", len(pages)-len(pending), "pendingPages", len(pending))

	g := new(errgroup.Group)
	g.SetLimit(plan.OCRWorkers)
	for _, batch := range Partition(pending, plan.BatchSize) {
		batch := batch
		for _, page := range batch {
			t.set(page.Index, StateOCRSubmitted)
		}
		g.Go(func() error {
			found := s.recognizeBatch(ctx, logCtx, batch)
			mu.Lock()
			for _, page := range batch {
				text, ok := found[page.Index]
				if !ok {
					t.set(page.Index, StateOCRError)
					continue
				}
				texts[page.Index] = text
				t.set(page.Index, StateOCRDone)
			}
			mu.Unlock()

			// durable writes run outside the lock so OCR workers don't queue on them
			for index, text := range found {
				s.cache.Put(ctx, docID, index, text)
			}
			return nil
		})
	}
	_ = g.Wait()
	return texts
}

// recognizeBatch runs one OCR call for the batch and returns the pages it
// could attribute text to. A one-page batch is a plain page call; if it fails,
// analyzePage makes the single individual retry, so a failing page costs
// exactly two OCR calls before it is flagged.
func (s *Scheduler) recognizeBatch(ctx context.Context, logCtx *slog.Logger, batch []models.Page) map[int]string {
	if len(batch) == 1 {
		text, err := s.recognizePage(ctx, batch[0])
		if err != nil {
			logCtx.Warn("Page OCR failed, will retry individually.", "page", batch[0].Index, "error", err)
			return nil
		}
		return map[int]string{batch[0].Index: text}
	}

	first, last := batch[0].Index, batch[len(batch)-1].Index
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	combined, err := s.ocr.RecognizeBatch(callCtx, batch)
	if err != nil {
		logCtx.Warn("Batch OCR failed, pages will be retried individually.", "firstPage", first, "lastPage", last, "error", err)
		return nil
	}

	split := SplitBatchText(combined)
	found := make(map[int]string, len(batch))
	for _, page := range batch {
		text := split[page.Index]
		if strings.TrimSpace(text) == "" {
			logCtx.Warn("Batch OCR response has no text for page, will retry individually.", "page", page.Index, "error", ErrPageMarkerMissing)
			continue
		}
		found[page.Index] = text
	}
	logCtx.Info("Batch OCR complete.", "firstPage", first, "lastPage", last, "pagesRecognized", len(found))
	return found
}

func (s *Scheduler) recognizePage(ctx context.Context, page models.Page) (string, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	text, err := s.ocr.RecognizePage(callCtx, page)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// analyzePage is the unit of work for one page. It never returns without a
// completed result carrying at least one row.
func (s *Scheduler) analyzePage(ctx context.Context, logCtx *slog.Logger, docID string, pc *ProcessingContext, page models.Page, text string, t *tracker) (result models.PageResult) {
	logCtx = logCtx.With("page", page.Index)
	result = models.PageResult{PageNumber: page.Index, OCRStatus: models.StageDone, AnalysisStatus: models.StagePending}
	permit := ""

	defer func() {
		if page.Index == 1 {
			pc.PublishPermit(permit)
		}
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logCtx.Error("Page unit failed unexpectedly.", "error", err)
			result.Rows = []models.AnalysisRow{failureRow(permit, page.Index, models.StatusRejected,
				fmt.Sprintf("Deficiência crítica: Ocorreu um erro durante o processamento: %v. A imagem original deve ser revisada manualmente.", err))}
			result.AnalysisStatus = models.StageFailed
			result.Error = err.Error()
			t.set(page.Index, StateAnalysisError)
		}
		result.Completed = true
	}()

	var ocrErr error
	if text == "" {
		result.OCRStatus = models.StageInProgress
		text, ocrErr = s.recognizePage(ctx, page)
		if ocrErr != nil {
			result.OCRStatus = models.StageFailed
			t.set(page.Index, StateOCRError)
			logCtx.Error("Individual OCR retry failed.", "error", ocrErr)
		} else {
			result.OCRStatus = models.StageDone
			t.set(page.Index, StateOCRDone)
			s.cache.Put(ctx, docID, page.Index, text)
		}
	}

	if page.Index == 1 {
		permit = ExtractPermitNumber(text, pc.Summary)
		pc.PublishPermit(permit)
	} else if permit = pc.PermitNumber(ctx.Done()); permit == "" {
		permit = ExtractPermitNumber(text, pc.Summary)
	}

	if ocrErr != nil {
		result.AnalysisStatus = models.StageFailed
		result.Error = ocrErr.Error()
		result.Rows = []models.AnalysisRow{failureRow(permit, page.Index, models.StatusHumanCheckRequired,
			fmt.Sprintf("Não foi possível analisar a página devido à falha no processamento OCR: %v. A imagem original deve ser revisada manualmente.", ocrErr))}
		return result
	}

	if guide := DetectGuideColor(text); guide.Skipped() {
		logCtx.Info("Page is not the white copy, skipping analysis.", "guide", guide)
		result.AnalysisStatus = models.StageDone
		result.Rows = []models.AnalysisRow{{
			PermitNumber: orUnknown(permit),
			PageNumber:   page.Index,
			PageSummary:  fmt.Sprintf("GUIA %s", guide),
			Section:      "Documento Completo",
			Status:       models.StatusNotApplicable,
			Comments:     fmt.Sprintf("NÃO APLICÁVEL - Cópia não sujeita a verificação (GUIA %s)", guide),
		}}
		t.set(page.Index, StateAnalysisDone)
		return result
	}

	result.AnalysisStatus = models.StageInProgress
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := s.judge.Analyze(callCtx, JudgmentRequest{
		RecognitionText: text,
		DocumentContext: pc.Summary,
		PageNumber:      page.Index,
		PermitNumber:    permit,
	})
	if err != nil {
		logCtx.Error("Page analysis failed.", "error", err)
		result.AnalysisStatus = models.StageFailed
		result.Error = err.Error()
		result.Rows = []models.AnalysisRow{failureRow(permit, page.Index, models.StatusRejected,
			fmt.Sprintf("Deficiência crítica: Ocorreu um erro durante a análise: %v. A imagem original deve ser revisada manualmente.", err))}
		t.set(page.Index, StateAnalysisError)
		return result
	}

	table := Normalize(raw, permit, page.Index)
	if table.Placeholder {
		logCtx.Warn("Judgment response could not be parsed, flagged for human check.", "reason", table.Reason)
	}
	result.Rows = ApplyOverrides(table.Rows, text)
	result.AnalysisStatus = models.StageDone
	t.set(page.Index, StateAnalysisDone)
	return result
}

func (s *Scheduler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func failureRow(permit string, page int, status models.Status, comment string) models.AnalysisRow {
	return models.AnalysisRow{
		PermitNumber: orUnknown(permit),
		PageNumber:   page,
		PageSummary:  fmt.Sprintf("Página %d", page),
		Section:      models.DocumentContentSection,
		Status:       status,
		Comments:     comment,
	}
}

func orUnknown(permit string) string {
	if permit == "" {
		return models.UnknownPermit
	}
	return permit
}
