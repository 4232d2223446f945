package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DurableStore persists recognition text per document, one record per doc_id.
type DurableStore interface {
	Load(ctx context.Context, docID string) (map[int]string, error)
	SavePage(ctx context.Context, docID string, index int, text string) error
}

// pageTexts is the in-process view of one document's cached pages.
type pageTexts struct {
	mu    sync.RWMutex
	pages map[int]string
}

func (p *pageTexts) get(index int) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	text, ok := p.pages[index]
	return text, ok
}

func (p *pageTexts) set(index int, text string) {
	p.mu.Lock()
	p.pages[index] = text
	p.mu.Unlock()
}

// FingerprintCache maps (doc_id, page index) to recognition text. The memory
// layer is authoritative for the current run; the durable layer survives restarts.
type FingerprintCache struct {
	mem    *cache.Cache
	store  DurableStore
	logger *slog.Logger
	loadMu sync.Mutex
}

// NewFingerprintCache builds a cache whose in-process entries expire after ttl.
// store may be nil, in which case only the memory layer is used.
func NewFingerprintCache(store DurableStore, ttl time.Duration, logger *slog.Logger) *FingerprintCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &FingerprintCache{
		mem:    cache.New(ttl, ttl/24+time.Minute),
		store:  store,
		logger: logger,
	}
}

// Fingerprint returns the sha256 hex digest of the raw document bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile hashes a file on disk without loading it into memory.
func FingerprintFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Get returns the cached text for a page. A miss is the normal "not yet
// computed" state, not an error.
func (c *FingerprintCache) Get(ctx context.Context, docID string, index int) (string, bool) {
	return c.entry(ctx, docID).get(index)
}

// Put stores text for a page. Re-writing a page is safe. Durable write
// failures are logged and swallowed.
func (c *FingerprintCache) Put(ctx context.Context, docID string, index int, text string) {
	c.entry(ctx, docID).set(index, text)
	if c.store == nil {
		return
	}
	if err := c.store.SavePage(ctx, docID, index, text); err != nil {
		c.logger.Warn("Could not persist OCR text to durable cache.", "documentId", docID, "page", index, "error", err)
	}
}

// entry returns the memory entry for docID, warming it from the durable store
// on first access.
func (c *FingerprintCache) entry(ctx context.Context, docID string) *pageTexts {
	if x, ok := c.mem.Get(docID); ok {
		return x.(*pageTexts)
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if x, ok := c.mem.Get(docID); ok {
		return x.(*pageTexts)
	}

	entry := &pageTexts{pages: make(map[int]string)}
	if c.store != nil {
		loaded, err := c.store.Load(ctx, docID)
		if err != nil {
			c.logger.Warn("Could not load durable OCR cache, continuing without it.", "documentId", docID, "error", err)
		}
		for index, text := range loaded {
			entry.pages[index] = text
		}
		if len(loaded) > 0 {
			c.logger.Info("Restored OCR cache from durable store.", "documentId", docID, "cachedPages", len(loaded))
		}
	}
	c.mem.Set(docID, entry, cache.DefaultExpiration)
	return entry
}
