package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/permitauditor/internal/gcp"
	"github.com/Lllllllleong/permitauditor/internal/models"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

// AuditorConfig holds all configuration for the auditor service.
type AuditorConfig struct {
	ProjectID       string
	VertexAIRegion  string
	PagesBucket     string
	CacheCollection string
	AuditCollection string
	OCRModel        string
	JudgmentModel   string
	CallTimeout     time.Duration
	CacheRetention  time.Duration
	MemoryCacheTTL  time.Duration
}

// Summarizer produces the document-level context for a whole PDF.
type Summarizer interface {
	Summarize(ctx context.Context, pdfURI string) (string, error)
}

// Auditor holds the clients and services behind both entry points.
type Auditor struct {
	storageClient *storage.Client
	vertexClient  *gcp.VertexClient
	cache         *FingerprintCache
	ocr           OCRCapability
	judge         JudgmentCapability
	summarizer    Summarizer
	recorder      AuditRecorder
	logger        *slog.Logger
	config        AuditorConfig
}

// loadConfig loads and validates all necessary environment variables for this service.
func loadConfig() (*AuditorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	pagesBucket := gcp.GetEnv("PAGES_BUCKET", "")
	if pagesBucket == "" {
		return nil, fmt.Errorf("PAGES_BUCKET environment variable must be set")
	}
	callTimeout, err := time.ParseDuration(gcp.GetEnv("CALL_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("CALL_TIMEOUT is not a valid duration: %w", err)
	}
	retentionDays, err := strconv.Atoi(gcp.GetEnv("CACHE_RETENTION_DAYS", "30"))
	if err != nil || retentionDays < 1 {
		return nil, fmt.Errorf("CACHE_RETENTION_DAYS must be a positive integer")
	}

	return &AuditorConfig{
		ProjectID:       projectID,
		VertexAIRegion:  gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		PagesBucket:     pagesBucket,
		CacheCollection: gcp.GetEnv("OCR_CACHE_COLLECTION", "ocr_cache"),
		AuditCollection: gcp.GetEnv("AUDIT_COLLECTION", "audits"),
		OCRModel:        gcp.GetEnv("OCR_MODEL", gcp.DefaultOCRModel),
		JudgmentModel:   gcp.GetEnv("JUDGMENT_MODEL", gcp.DefaultJudgmentModel),
		CallTimeout:     callTimeout,
		CacheRetention:  time.Duration(retentionDays) * 24 * time.Hour,
		MemoryCacheTTL:  24 * time.Hour,
	}, nil
}

// NewAuditor creates a new Auditor from the environment.
func NewAuditor(ctx context.Context) (*Auditor, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.OCRModel, config.JudgmentModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	logger := slog.Default()
	store := NewFirestoreCacheStore(firestoreClient, config.CacheCollection, config.CacheRetention)
	a := &Auditor{
		storageClient: storageClient,
		vertexClient:  vertexClient,
		cache:         NewFingerprintCache(store, config.MemoryCacheTTL, logger),
		ocr:           NewVertexOCR(vertexClient.OCRModel),
		judge:         NewVertexJudgment(vertexClient.JudgmentModel),
		summarizer:    NewVertexSummarizer(vertexClient.SummaryModel),
		recorder:      NewFirestoreAuditStore(firestoreClient, config.AuditCollection),
		logger:        logger,
		config:        *config,
	}
	logger.Info("Permit auditor initialized.", "ocrModel", config.OCRModel, "judgmentModel", config.JudgmentModel)
	return a, nil
}

// Process audits the permit PDF stored at gs://req.Bucket/req.Object.
func (a *Auditor) Process(ctx context.Context, req *models.AuditRequest) (*models.AuditResponse, error) {
	if req.Bucket == "" && req.Object == "" && req.GCSURI != "" {
		bucket, object, err := gcp.ParseGCSURI(req.GCSURI)
		if err != nil {
			return nil, err
		}
		req.Bucket, req.Object = bucket, object
	}
	if req.Bucket == "" || req.Object == "" {
		return nil, fmt.Errorf("bucket and object must be provided")
	}
	if req.ExecutionID == "" {
		req.ExecutionID = uuid.NewString()
	}
	logCtx := a.logger.With("gcsBucket", req.Bucket, "gcsObject", req.Object, "executionId", req.ExecutionID)
	logCtx.Info("Processing permit document.")

	tempDir, err := os.MkdirTemp("", "permit-auditor-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := a.streamGCSObject(ctx, req.Bucket, req.Object, sourcePath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return nil, err
	}

	docID, err := FingerprintFile(sourcePath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return nil, fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("documentId", docID)

	pages, err := a.preparePages(ctx, logCtx, docID, sourcePath)
	if err != nil {
		return nil, err
	}

	doc := models.Document{
		ID:         docID,
		SourceURI:  gcp.GCSURI(req.Bucket, req.Object),
		Pages:      pages,
		UploadedAt: time.Now(),
	}
	return a.audit(ctx, logCtx, doc, req)
}

// audit runs the scheduler over a prepared document and records the outcome.
func (a *Auditor) audit(ctx context.Context, logCtx *slog.Logger, doc models.Document, req *models.AuditRequest) (*models.AuditResponse, error) {
	record := &models.AuditRecord{
		DocumentID:  doc.ID,
		ExecutionID: req.ExecutionID,
		SourceURI:   doc.SourceURI,
		Mode:        req.Mode,
		Status:      models.AuditStatusProcessing,
		PageCount:   len(doc.Pages),
		Progress:    models.Progress{Total: len(doc.Pages)},
		CreatedAt:   time.Now(),
	}
	a.saveRecord(ctx, logCtx, record)

	if a.summarizer != nil {
		callCtx, cancel := context.WithTimeout(ctx, a.callTimeout())
		summary, err := a.summarizer.Summarize(callCtx, doc.SourceURI)
		cancel()
		if err != nil {
			logCtx.Warn("Document summary failed, continuing without context.", "error", err)
		}
		doc.Context = summary
	}

	plan := PlanFor(len(doc.Pages))
	if req.Mode == models.ModeSequential {
		plan = SequentialPlan()
	}

	scheduler := NewScheduler(a.ocr, a.judge, a.cache, logCtx, a.config.CallTimeout)
	scheduler.OnPageComplete = func(page models.PageResult, progress models.Progress) {
		logCtx.Info("Page completed.", "page", page.PageNumber, "completed", progress.Completed, "inProgress", progress.InProgress, "total", progress.Total)
		if a.recorder == nil {
			return
		}
		if err := a.recorder.UpdateProgress(ctx, req.ExecutionID, progress); err != nil {
			logCtx.Warn("Could not record progress.", "error", err)
		}
	}

	job := scheduler.Start(ctx, doc, plan)
	result, err := job.Wait()
	if err != nil {
		record.Status = models.AuditStatusFailed
		record.ErrorDetails = err.Error()
		record.Progress = job.Progress()
		a.saveRecord(context.WithoutCancel(ctx), logCtx, record)
		logCtx.Error("Audit did not complete.", "error", err)
		return nil, fmt.Errorf("audit of document %s: %w", doc.ID, err)
	}

	report := Aggregate(result, req.StatusFilter)
	record.Status = models.AuditStatusCompleted
	record.PermitNumber = result.PermitNumber
	record.Progress = job.Progress()
	record.Rows = report.Rows
	record.Counts = report.Counts
	a.saveRecord(ctx, logCtx, record)

	logCtx.Info("Audit complete.", "permitNumber", result.PermitNumber, "rows", len(report.Rows), "filteredRows", len(report.FilteredRows))
	return &models.AuditResponse{
		Status:         "success",
		DocumentID:     doc.ID,
		ExecutionID:    req.ExecutionID,
		PermitNumber:   result.PermitNumber,
		PageCount:      len(doc.Pages),
		Rows:           report.Rows,
		FilteredRows:   report.FilteredRows,
		Counts:         report.Counts,
		FilteredCounts: report.FilteredCounts,
		Progress:       record.Progress,
	}, nil
}

func (a *Auditor) saveRecord(ctx context.Context, logCtx *slog.Logger, record *models.AuditRecord) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Save(ctx, record); err != nil {
		logCtx.Warn("Could not save audit record.", "status", record.Status, "error", err)
	}
}

func (a *Auditor) callTimeout() time.Duration {
	if a.config.CallTimeout <= 0 {
		return 120 * time.Second
	}
	return a.config.CallTimeout
}

// preparePages validates the PDF, splits it into single-page PDFs and uploads
// them under <docID>/ in the pages bucket. The returned pages reference them by URI.
func (a *Auditor) preparePages(ctx context.Context, logCtx *slog.Logger, docID, sourcePath string) ([]models.Page, error) {
	optimizedPath := filepath.Join(filepath.Dir(sourcePath), "optimized.pdf")
	if err := optimizePDF(sourcePath, optimizedPath); err != nil {
		logCtx.Error("Failed to validate/optimize PDF", "error", err)
		return nil, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(optimizedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := api.SplitFile(optimizedPath, filepath.Dir(optimizedPath), 1, nil); err != nil {
		return nil, fmt.Errorf("failed to split PDF: %w", err)
	}
	logCtx.Info("PDF optimized and split locally.", "pageCount", pageCount)

	splitFileBase := strings.TrimSuffix(optimizedPath, filepath.Ext(optimizedPath))
	bucket := a.storageClient.Bucket(a.config.PagesBucket)
	pages := make([]models.Page, pageCount)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)
	for i := 1; i <= pageCount; i++ {
		pageNumber := i
		localPath := fmt.Sprintf("%s_%d.pdf", splitFileBase, pageNumber)
		object := fmt.Sprintf("%s/%05d.pdf", docID, pageNumber)
		pages[pageNumber-1] = models.Page{
			DocumentID: docID,
			Index:      pageNumber,
			ImageRef:   gcp.GCSURI(a.config.PagesBucket, object),
		}
		eg.Go(func() error {
			err := retryWithBackoff(gctx, logCtx.With("gcsObject", object), 4, time.Second, func(ctx context.Context) error {
				return uploadFile(ctx, bucket, localPath, object)
			})
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNumber, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("One or more pages failed to upload", "error", err)
		return nil, fmt.Errorf("one or more pages failed to upload: %w", err)
	}
	logCtx.Info("All pages uploaded.")
	return pages, nil
}

func (a *Auditor) streamGCSObject(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := a.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := localFile.ReadFrom(gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}

func uploadFile(ctx context.Context, bucket *storage.BucketHandle, localPath, object string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer f.Close()

	writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()
	return gcp.SaveToGCSAtomically(writeCtx, bucket, object, "application/pdf", f)
}

// retryWithBackoff calls fn up to attempts times, doubling the wait between tries.
func retryWithBackoff(ctx context.Context, logCtx *slog.Logger, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		logCtx.Warn("Attempt failed, will retry.", "attempt", i+1, "maxRetries", attempts, "backoff", backoff.String(), "error", err)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			logCtx.Error("Context cancelled during backoff. Aborting retries.", "error", ctx.Err())
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// Close releases the Vertex AI client.
func (a *Auditor) Close() error {
	if a.vertexClient != nil {
		return a.vertexClient.Close()
	}
	return nil
}
