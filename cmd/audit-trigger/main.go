package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/permitauditor/internal/models"
	"github.com/Lllllllleong/permitauditor/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	auditorInstance *services.Auditor
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("AuditUploadedPermit", auditUploadedPermit)
}

// main is required by the Go Functions Framework.
func main() {}

// auditUploadedPermit audits every PDF finalized in the upload bucket.
func auditUploadedPermit(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		auditorInstance, initErr = services.NewAuditor(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(gcsEvent.Name), ".pdf") {
		slog.Info("Ignoring non-PDF object.", "gcsBucket", gcsEvent.Bucket, "gcsObject", gcsEvent.Name)
		return nil
	}

	_, err := auditorInstance.Process(ctx, &models.AuditRequest{
		Bucket:      gcsEvent.Bucket,
		Object:      gcsEvent.Name,
		ExecutionID: e.ID(),
		Mode:        models.ModeParallel,
	})
	return err
}
