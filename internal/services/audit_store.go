package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/permitauditor/internal/models"
)

// AuditRecorder persists the lifecycle of an audit execution.
type AuditRecorder interface {
	Save(ctx context.Context, record *models.AuditRecord) error
	UpdateProgress(ctx context.Context, executionID string, progress models.Progress) error
}

// FirestoreAuditStore keeps one document per execution ID.
type FirestoreAuditStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreAuditStore(client *firestore.Client, collection string) *FirestoreAuditStore {
	return &FirestoreAuditStore{client: client, collection: collection}
}

func (s *FirestoreAuditStore) Save(ctx context.Context, record *models.AuditRecord) error {
	record.UpdatedAt = time.Now()
	if _, err := s.client.Collection(s.collection).Doc(record.ExecutionID).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

func (s *FirestoreAuditStore) UpdateProgress(ctx context.Context, executionID string, progress models.Progress) error {
	updates := []firestore.Update{
		{Path: "progress", Value: progress},
		{Path: "updatedAt", Value: time.Now()},
	}
	if _, err := s.client.Collection(s.collection).Doc(executionID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update audit progress: %w", err)
	}
	return nil
}
