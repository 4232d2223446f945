package services

import (
	"fmt"
	"sort"

	"github.com/Lllllllleong/permitauditor/internal/models"
)

// Report is the merged document table plus its filtered view.
type Report struct {
	Rows           []models.AnalysisRow
	FilteredRows   []models.AnalysisRow
	Counts         map[models.Status]int
	FilteredCounts map[models.Status]int
}

// Aggregate merges per-page rows into one table ordered by page number, keeping
// each page's emission order. Malformed rows are dropped; a page left with no
// row carrying its own page number gets a HumanCheckRequired placeholder. An
// empty filter selects models.DefaultStatusFilter.
func Aggregate(result *models.DocumentResult, filter []models.Status) Report {
	var rows []models.AnalysisRow
	if result != nil {
		pages := make([]models.PageResult, len(result.Pages))
		copy(pages, result.Pages)
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })

		for _, page := range pages {
			own := 0
			for _, row := range page.Rows {
				if row.Section == "" || row.PageNumber <= 0 {
					continue
				}
				rows = append(rows, row)
				if row.PageNumber == page.PageNumber {
					own++
				}
			}
			if own == 0 {
				rows = append(rows, missingRowsPlaceholder(result.PermitNumber, page.PageNumber))
			}
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].PageNumber < rows[j].PageNumber })
	}

	filtered := Filter(rows, filter)
	return Report{
		Rows:           rows,
		FilteredRows:   filtered,
		Counts:         CountByStatus(rows),
		FilteredCounts: CountByStatus(filtered),
	}
}

// Filter keeps the rows whose status is in statuses, preserving order.
func Filter(rows []models.AnalysisRow, statuses []models.Status) []models.AnalysisRow {
	if len(statuses) == 0 {
		statuses = models.DefaultStatusFilter
	}
	allowed := make(map[models.Status]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}
	out := make([]models.AnalysisRow, 0, len(rows))
	for _, row := range rows {
		if allowed[row.Status] {
			out = append(out, row)
		}
	}
	return out
}

// CountByStatus tallies rows per status. Every known status has an entry.
func CountByStatus(rows []models.AnalysisRow) map[models.Status]int {
	counts := make(map[models.Status]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status]++
	}
	return counts
}

func missingRowsPlaceholder(permit string, page int) models.AnalysisRow {
	return models.AnalysisRow{
		PermitNumber: orUnknown(permit),
		PageNumber:   page,
		PageSummary:  fmt.Sprintf("Página %d", page),
		Section:      models.DocumentContentSection,
		Status:       models.StatusHumanCheckRequired,
		Comments:     "Nenhum resultado válido foi produzido para esta página. A página requer verificação manual.",
	}
}
