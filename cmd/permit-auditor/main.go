package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/permitauditor/internal/models"
	"github.com/Lllllllleong/permitauditor/internal/services"
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

	functions.HTTP("HandleAuditPermit", handleAuditPermit)
}

// main is required by the Go Functions Framework.
func main() {}

// handleAuditPermit audits one uploaded permit PDF and returns the findings table.
func handleAuditPermit(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		auditorInstance, initErr = services.NewAuditor(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if (req.Bucket == "" || req.Object == "") && req.GCSURI == "" {
		http.Error(w, "Bad Request: bucket and object, or gcsUri, are required", http.StatusBadRequest)
		return
	}
	if req.Mode != "" && req.Mode != models.ModeParallel && req.Mode != models.ModeSequential {
		http.Error(w, "Bad Request: mode must be parallel or sequential", http.StatusBadRequest)
		return
	}
	for _, s := range req.StatusFilter {
		if !s.Valid() {
			http.Error(w, "Bad Request: unknown status in statusFilter", http.StatusBadRequest)
			return
		}
	}

	// The specific error is already logged inside Process.
	res, err := auditorInstance.Process(r.Context(), &req)
	if err != nil {
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
