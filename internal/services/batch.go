package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/permitauditor/internal/models"
)

// Plan sizes the OCR batches and the two worker pools for one document.
type Plan struct {
	BatchSize       int
	OCRWorkers      int
	AnalysisWorkers int
}

// PlanFor picks batch and pool sizes from the total page count. Analysis
// pools stay smaller than OCR pools to limit concurrent judgment calls.
func PlanFor(totalPages int) Plan {
	switch {
	case totalPages <= 0:
		return SequentialPlan()
	case totalPages <= 5:
		return Plan{BatchSize: totalPages, OCRWorkers: 2, AnalysisWorkers: 1}
	case totalPages <= 15:
		return Plan{BatchSize: 5, OCRWorkers: 3, AnalysisWorkers: 2}
	default:
		return Plan{BatchSize: 8, OCRWorkers: 4, AnalysisWorkers: 3}
	}
}

// SequentialPlan processes one page at a time on a single worker.
func SequentialPlan() Plan {
	return Plan{BatchSize: 1, OCRWorkers: 1, AnalysisWorkers: 1}
}

// Partition splits pages into consecutive batches of at most size pages.
func Partition(pages []models.Page, size int) [][]models.Page {
	if size < 1 {
		size = 1
	}
	var batches [][]models.Page
	for start := 0; start < len(pages); start += size {
		end := start + size
		if end > len(pages) {
			end = len(pages)
		}
		batches = append(batches, pages[start:end])
	}
	return batches
}

// PageMarker is the delimiter the OCR model is told to print before each
// page of a batch response.
func PageMarker(pageNumber int) string {
	return fmt.Sprintf("---- OCR RESULTS FOR PAGE %d ----", pageNumber)
}

const markerPhrase = "OCR RESULTS FOR PAGE"

var pageMarker = regexp.MustCompile(`(?i)-{4}\s*OCR RESULTS FOR PAGE\s+(\d+)\s*-{4}`)

// SplitBatchText demultiplexes a batch OCR response into per-page text.
// Text under a malformed marker is discarded; pages whose marker is missing
// are simply absent from the result.
func SplitBatchText(text string) map[int]string {
	results := make(map[int]string)
	current := 0
	var buf strings.Builder

	flush := func() {
		if current > 0 {
			results[current] = strings.TrimSpace(buf.String())
		}
		buf.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToUpper(line), markerPhrase) {
			flush()
			current = 0
			if m := pageMarker.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					current = n
				}
			}
			continue
		}
		if current > 0 {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()
	return results
}
