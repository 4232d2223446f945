package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/permitauditor/internal/models"
)

const tableColumns = 6

// Table is the typed outcome of normalising one judgment response.
// Placeholder is set when the response could not be parsed and Rows holds a
// single synthetic HumanCheckRequired row instead.
type Table struct {
	Rows        []models.AnalysisRow
	Placeholder bool
	Reason      string
}

var (
	separatorLine = regexp.MustCompile(`^\|[\s:|-]*-{3,}[\s:|-]*\|$`)
	digitRun      = regexp.MustCompile(`\d+`)
)

var headerMarkers = []string{"permit number", "número da permissão", "numero da permissao"}

// Normalize parses the six-column findings table out of a raw judgment
// response. It never fails: unusable input yields a placeholder table.
func Normalize(raw, permitNumber string, pageNumber int) Table {
	if permitNumber == "" {
		permitNumber = models.UnknownPermit
	}
	if strings.TrimSpace(raw) == "" || !strings.Contains(raw, "|") {
		return placeholderTable(permitNumber, pageNumber, "a resposta não contém o formato de tabela esperado.")
	}

	lines := tableLines(raw)
	headerFound := false
	collecting := false
	var rows []models.AnalysisRow
	for i, line := range lines {
		switch {
		case !headerFound && isFindingsHeader(lines, i):
			headerFound = true
			collecting = true
		case separatorLine.MatchString(line):
			// formatting only
		case i+1 < len(lines) && separatorLine.MatchString(lines[i+1]):
			// header of some other table the model printed; ignore its rows
			collecting = false
		case collecting:
			rows = append(rows, parseRow(line, permitNumber, pageNumber))
		}
	}

	if !headerFound {
		return placeholderTable(permitNumber, pageNumber, "cabeçalho da tabela de resultados não encontrado.")
	}
	if len(rows) == 0 {
		return placeholderTable(permitNumber, pageNumber, "não foi possível extrair dados estruturados da página.")
	}
	return Table{Rows: rows}
}

// tableLines keeps the trimmed, non-empty lines that open and close with a pipe.
func tableLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 2 || !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// isFindingsHeader reports whether lines[i] is the findings table header. A
// data row whose comment mentions a header phrase is not one: the header is
// followed by a separator line or carries no status in its status column.
func isFindingsHeader(lines []string, i int) bool {
	lower := strings.ToLower(lines[i])
	named := false
	for _, m := range headerMarkers {
		if strings.Contains(lower, m) {
			named = true
			break
		}
	}
	if !named {
		return false
	}
	if i+1 < len(lines) && separatorLine.MatchString(lines[i+1]) {
		return true
	}
	return !models.LooksLikeStatus(splitCells(lines[i])[4])
}

// splitCells splits a table line into exactly tableColumns trimmed cells.
func splitCells(line string) []string {
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	parts := strings.Split(inner, "|")
	cells := make([]string, tableColumns)
	for i := 0; i < tableColumns && i < len(parts); i++ {
		cells[i] = strings.TrimSpace(parts[i])
	}
	return cells
}

func parseRow(line, permitNumber string, pageNumber int) models.AnalysisRow {
	cells := splitCells(line)

	permit := cells[0]
	if permit == "" || permit == "XXX-XXXXX" {
		permit = permitNumber
	}

	// The row belongs to the page that was analysed. The cell is only read
	// when that page is unknown, and then only its first number counts
	// ("3 de 10" is page 3).
	page := pageNumber
	if page <= 0 {
		if digits := digitRun.FindString(cells[1]); digits != "" {
			if n, err := strconv.Atoi(digits); err == nil && n > 0 {
				page = n
			}
		}
	}

	return models.AnalysisRow{
		PermitNumber: permit,
		PageNumber:   page,
		PageSummary:  cells[2],
		Section:      cells[3],
		Status:       models.ParseStatus(cells[4]),
		Comments:     cells[5],
	}
}

func placeholderTable(permitNumber string, pageNumber int, reason string) Table {
	return Table{
		Rows: []models.AnalysisRow{{
			PermitNumber: permitNumber,
			PageNumber:   pageNumber,
			PageSummary:  fmt.Sprintf("Página %d", pageNumber),
			Section:      models.DocumentContentSection,
			Status:       models.StatusHumanCheckRequired,
			Comments:     "Falha na análise: " + reason + " A página requer verificação manual.",
		}},
		Placeholder: true,
		Reason:      reason,
	}
}
