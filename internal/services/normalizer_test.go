package services

import (
	"testing"

	"github.com/Lllllllleong/permitauditor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const findingsHeader = "| Permit Number | Page Number | Page Summary | Section | Status | Comments |\n|---|---|---|---|---|---|\n"

func TestNormalizeParsesFindingsTable(t *testing.T) {
	raw := "Aqui está a análise:\n\n" + findingsHeader +
		"| PT-20451 | Página 2 | Isolamento | 14 - Operações Simultâneas | Reprovado | Falta assinatura. |\n" +
		"| XXX-XXXXX | X | Isolamento | 15 - Co-emissor | aprovado | OK |\n"

	table := Normalize(raw, "20451", 2)
	require.False(t, table.Placeholder)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, models.AnalysisRow{
		PermitNumber: "PT-20451",
		PageNumber:   2,
		PageSummary:  "Isolamento",
		Section:      "14 - Operações Simultâneas",
		Status:       models.StatusRejected,
		Comments:     "Falta assinatura.",
	}, table.Rows[0])
	assert.Equal(t, "20451", table.Rows[1].PermitNumber)
	assert.Equal(t, 2, table.Rows[1].PageNumber)
	assert.Equal(t, models.StatusApproved, table.Rows[1].Status)
}

func TestNormalizePadsShortRows(t *testing.T) {
	raw := findingsHeader + "| | | Resumo | 18 - Ciência da PT |\n"

	table := Normalize(raw, "20451", 5)
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, "20451", row.PermitNumber)
	assert.Equal(t, 5, row.PageNumber)
	assert.Equal(t, "18 - Ciência da PT", row.Section)
	assert.Equal(t, models.StatusHumanCheckRequired, row.Status)
	assert.Empty(t, row.Comments)
}

func TestNormalizeTruncatesLongRows(t *testing.T) {
	raw := findingsHeader + "| 1 | 3 | s | 20 - Encerramento | N/A | c | extra | more |\n"

	table := Normalize(raw, "1", 3)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, models.StatusNotApplicable, table.Rows[0].Status)
	assert.Equal(t, "c", table.Rows[0].Comments)
}

func TestNormalizeIgnoresOtherTables(t *testing.T) {
	raw := findingsHeader +
		"| PT-1 | 2 | s | 14 | APROVADO | ok |\n\n" +
		"| Item | Valor |\n|---|---|\n| a | b |\n"

	table := Normalize(raw, "PT-1", 2)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "14", table.Rows[0].Section)
}

func TestNormalizePlaceholders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no pipes", "Não consegui analisar esta página."},
		{"no findings header", "| a | b |\n|---|---|\n| c | d |\n"},
		{"header without rows", findingsHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := Normalize(tt.raw, "", 4)
			require.True(t, table.Placeholder)
			require.Len(t, table.Rows, 1)
			row := table.Rows[0]
			assert.Equal(t, models.UnknownPermit, row.PermitNumber)
			assert.Equal(t, 4, row.PageNumber)
			assert.Equal(t, models.DocumentContentSection, row.Section)
			assert.Equal(t, models.StatusHumanCheckRequired, row.Status)
			assert.NotEmpty(t, table.Reason)
		})
	}
}

func TestNormalizeEveryStatusIsCanonical(t *testing.T) {
	raw := findingsHeader +
		"| 1 | 1 | s | a | looks fine | c |\n" +
		"| 1 | 1 | s | b | NOT APPROVED | c |\n" +
		"| 1 | 1 | s | c | ??? | c |\n"

	for _, row := range Normalize(raw, "1", 1).Rows {
		assert.True(t, row.Status.Valid(), "status %q", row.Status)
	}
}

func TestNormalizePageCellFallsBackToAnalysedPage(t *testing.T) {
	tests := []struct {
		name string
		cell string
		page int
		want int
	}{
		{"page of total", "3 de 10", 3, 3},
		{"page range", "1-2", 1, 1},
		{"labelled", "Página 7", 7, 7},
		{"disagrees with analysed page", "9", 4, 4},
		{"placeholder", "X", 5, 5},
		{"analysed page unknown", "3 de 10", 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := findingsHeader + "| PT-1 | " + tt.cell + " | s | 14 | APROVADO | ok |\n"
			table := Normalize(raw, "PT-1", tt.page)
			require.Len(t, table.Rows, 1)
			assert.Equal(t, tt.want, table.Rows[0].PageNumber)
		})
	}
}

func TestNormalizeKeepsRowsMentioningHeaderWords(t *testing.T) {
	raw := findingsHeader +
		"| PT-1 | 2 | s | 1 - Identificação | REPROVADO | Número da permissão não preenchido |\n" +
		"| PT-1 | 2 | s | 2 - Local | APROVADO | ok |\n"

	table := Normalize(raw, "PT-1", 2)
	require.False(t, table.Placeholder)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, models.StatusRejected, table.Rows[0].Status)
	assert.Equal(t, "Número da permissão não preenchido", table.Rows[0].Comments)
	assert.Equal(t, "2 - Local", table.Rows[1].Section)
}

func TestNormalizeHeaderWithoutSeparator(t *testing.T) {
	raw := "| Permit Number | Page Number | Page Summary | Section | Status | Comments |\n" +
		"| PT-1 | 2 | s | 14 | APROVADO | ok |\n"

	table := Normalize(raw, "PT-1", 2)
	require.False(t, table.Placeholder)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "14", table.Rows[0].Section)
}
