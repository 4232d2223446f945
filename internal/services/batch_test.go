package services

import (
	"fmt"
	"testing"

	"github.com/Lllllllleong/permitauditor/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPlanFor(t *testing.T) {
	tests := []struct {
		pages int
		want  Plan
	}{
		{0, SequentialPlan()},
		{1, Plan{BatchSize: 1, OCRWorkers: 2, AnalysisWorkers: 1}},
		{5, Plan{BatchSize: 5, OCRWorkers: 2, AnalysisWorkers: 1}},
		{6, Plan{BatchSize: 5, OCRWorkers: 3, AnalysisWorkers: 2}},
		{15, Plan{BatchSize: 5, OCRWorkers: 3, AnalysisWorkers: 2}},
		{16, Plan{BatchSize: 8, OCRWorkers: 4, AnalysisWorkers: 3}},
		{200, Plan{BatchSize: 8, OCRWorkers: 4, AnalysisWorkers: 3}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pages), func(t *testing.T) {
			got := PlanFor(tt.pages)
			assert.Equal(t, tt.want, got)
			if tt.pages > 0 {
				assert.Less(t, got.AnalysisWorkers, got.OCRWorkers)
			}
		})
	}
}

func TestPartition(t *testing.T) {
	pages := testDocument("doc", 12).Pages

	batches := Partition(pages, 5)
	assert.Len(t, batches, 3)
	assert.Len(t, batches[2], 2)
	assert.Equal(t, 11, batches[2][0].Index)

	assert.Len(t, Partition(pages, 0), 12)
	assert.Empty(t, Partition(nil, 5))
	assert.Equal(t, [][]models.Page{pages}, Partition(pages, 20))
}

func TestSplitBatchText(t *testing.T) {
	text := PageMarker(4) + "\nline a\nline b\n" +
		PageMarker(5) + "\n\nline c\n" +
		"---- OCR RESULTS FOR PAGE ? ----\ngarbage\n" +
		PageMarker(7) + "\nline d"

	got := SplitBatchText(text)
	assert.Equal(t, map[int]string{
		4: "line a\nline b",
		5: "line c",
		7: "line d",
	}, got)
}

func TestSplitBatchTextMissingMarker(t *testing.T) {
	text := "preamble that belongs to nobody\n" + PageMarker(1) + "\none\n" + PageMarker(3) + "\nthree\n"

	got := SplitBatchText(text)
	assert.Equal(t, "one", got[1])
	assert.Equal(t, "three", got[3])
	_, ok := got[2]
	assert.False(t, ok)
}
