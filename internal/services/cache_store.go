package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/permitauditor/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreCacheStore keeps one Firestore document per doc_id holding a
// page-index → recognition-text map. Records carry an expireAt field so a
// Firestore TTL policy can evict documents nobody re-submits.
type FirestoreCacheStore struct {
	client     *firestore.Client
	collection string
	retention  time.Duration
}

func NewFirestoreCacheStore(client *firestore.Client, collection string, retention time.Duration) *FirestoreCacheStore {
	return &FirestoreCacheStore{client: client, collection: collection, retention: retention}
}

// Load reads the cached pages for docID. A missing record is an empty cache.
func (s *FirestoreCacheStore) Load(ctx context.Context, docID string) (map[int]string, error) {
	snap, err := s.client.Collection(s.collection).Doc(docID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return map[int]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR cache record: %w", err)
	}

	var record models.OCRCacheRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode OCR cache record: %w", err)
	}
	return decodePageKeys(record.Pages), nil
}

// SavePage merges one page into the document's record.
func (s *FirestoreCacheStore) SavePage(ctx context.Context, docID string, index int, text string) error {
	now := time.Now()
	update := map[string]interface{}{
		"pages":     map[string]interface{}{strconv.Itoa(index): text},
		"updatedAt": now,
		"expireAt":  now.Add(s.retention),
	}
	if _, err := s.client.Collection(s.collection).Doc(docID).Set(ctx, update, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to write OCR cache page %d: %w", index, err)
	}
	return nil
}

// decodePageKeys converts Firestore string keys back to page indexes,
// skipping keys that are not positive integers.
func decodePageKeys(pages map[string]string) map[int]string {
	out := make(map[int]string, len(pages))
	for key, text := range pages {
		index, err := strconv.Atoi(key)
		if err != nil || index < 1 {
			continue
		}
		out[index] = text
	}
	return out
}
