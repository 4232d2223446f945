package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Lllllllleong/permitauditor/internal/models"
)

// Verdict is the result of a deterministic section check. When Conclusive is
// false the judgment model's own verdict stands.
type Verdict struct {
	Status     models.Status
	Comment    string
	Conclusive bool
}

// Inconclusive defers to the judgment model.
var Inconclusive = Verdict{}

func approve(comment string) Verdict {
	return Verdict{Status: models.StatusApproved, Comment: comment, Conclusive: true}
}

func reject(comment string) Verdict {
	return Verdict{Status: models.StatusRejected, Comment: comment, Conclusive: true}
}

// sectionRule re-derives a section verdict from the lowercase lines of a
// page's recognition text.
type sectionRule struct {
	id       int
	number   *regexp.Regexp
	names    []string // section names as they appear in table rows
	headings []string // phrases that locate the section in recognition text
	verify   func(lines []string) Verdict
}

func (r sectionRule) matchesRow(section string) bool {
	lower := strings.ToLower(section)
	if r.number.MatchString(lower) {
		return true
	}
	return containsAny(lower, r.names...)
}

func (r sectionRule) located(lines []string) bool {
	for _, line := range lines {
		if containsAny(line, r.headings...) {
			return true
		}
	}
	return false
}

func newRule(id int, names []string, extraHeadings []string, verify func([]string) Verdict) sectionRule {
	headings := []string{
		fmt.Sprintf("seção %d", id),
		fmt.Sprintf("secao %d", id),
		fmt.Sprintf("section %d", id),
	}
	return sectionRule{
		id:       id,
		number:   regexp.MustCompile(fmt.Sprintf(`(^|\D)%d(\D|$)`, id)),
		names:    names,
		headings: append(headings, extraHeadings...),
		verify:   verify,
	}
}

// sectionRules is evaluated in order; the first rule matching a row wins.
var sectionRules = []sectionRule{
	newRule(14,
		[]string{"operações simultâneas", "operacoes simultaneas", "simultaneous operations"},
		[]string{"14 - operações simultâneas", "14 - operacoes simultaneas"},
		verifySimultaneousOperations),
	newRule(15,
		[]string{"co-emissor", "co-issuer"},
		[]string{"15 - co-emissor"},
		verifyCoIssuer),
	newRule(18,
		[]string{"ciência da pt", "ciencia da pt", "awareness"},
		[]string{"18 - ciência da pt", "18 - ciencia da pt"},
		verifyAwareness),
	newRule(20,
		[]string{"encerramento", "closure"},
		[]string{"20 - encerramento"},
		verifyClosure),
}

var (
	yesCheckedMarkers  = []string{"[checked: sim]", "[checked: yes]"}
	filledFieldMarkers = []string{"[filled field:", "[filled]"}
	nameMarkers        = []string{"[filled field: name]", "[filled field: nome]"}
	functionMarkers    = []string{"[filled field: function]", "[filled field: função]", "[filled field: funcao]"}
	signatureMarkers   = []string{"[signed]", "[assinado]"}
	closureReasons     = []string{"término do trabalho", "termino do trabalho", "acidente", "outros"}
	closureTerms       = []string{"encerramento", "closure", "término", "termino", "trabalho concluído", "trabalho concluido"}
	selectionWords     = []string{"checked", "marcado", "selected", "selecionado"}
	clearedWords       = []string{"unchecked", "desmarcado", "não marcado", "nao marcado", "unselected", "não selecionado"}
)

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func countAll(lines []string, markers ...string) int {
	n := 0
	for _, line := range lines {
		for _, m := range markers {
			n += strings.Count(line, m)
		}
	}
	return n
}

// verifySimultaneousOperations: a "yes" answer must be followed by at least
// one filled field.
func verifySimultaneousOperations(lines []string) Verdict {
	yesChecked, filled := false, false
	for _, line := range lines {
		if containsAny(line, yesCheckedMarkers...) {
			yesChecked = true
		}
		if yesChecked && containsAny(line, filledFieldMarkers...) {
			filled = true
		}
	}
	switch {
	case yesChecked && !filled:
		return reject("Seção 14: Marcado 'Sim' para operações simultâneas, mas campos obrigatórios não foram preenchidos.")
	case yesChecked:
		return approve("Seção 14: Operações simultâneas corretamente documentadas com campos preenchidos.")
	default:
		return approve("Seção 14: Não há operações simultâneas (opção 'Não' selecionada ou formulário N/A).")
	}
}

// verifyCoIssuer: every filled name needs a matching signature.
func verifyCoIssuer(lines []string) Verdict {
	names := countAll(lines, nameMarkers...)
	signatures := countAll(lines, signatureMarkers...)
	if names != signatures && (names > 0 || signatures > 0) {
		return reject("Seção 15: Inconsistência entre campos de nome e assinatura. Todos os campos preenchidos devem ter assinaturas correspondentes.")
	}
	return approve("Seção 15: Campos de co-emissor corretamente preenchidos ou adequadamente vazios.")
}

// verifyAwareness: name, function and signature are all present or all absent.
func verifyAwareness(lines []string) Verdict {
	names := countAll(lines, nameMarkers...)
	functions := countAll(lines, functionMarkers...)
	signatures := countAll(lines, signatureMarkers...)
	switch {
	case names > 0 && functions > 0 && signatures > 0:
		return approve("Seção 18: Pelo menos uma linha completa com nome, função e assinatura.")
	case names == 0 && functions == 0 && signatures == 0:
		return approve("Seção 18: Seção completamente vazia, o que é aceitável.")
	default:
		return reject("Seção 18: Informações parciais detectadas. Cada linha deve ter nome, função e assinatura ou estar completamente vazia.")
	}
}

// verifyClosure: one of the closure reasons must be checked.
func verifyClosure(lines []string) Verdict {
	for _, line := range lines {
		if strings.Contains(line, "[checked:") && containsAny(line, closureReasons...) {
			return approve("Seção 20: Motivo de encerramento devidamente marcado.")
		}
	}
	for _, line := range lines {
		if containsAny(line, clearedWords...) {
			continue
		}
		if containsAny(line, closureTerms...) && containsAny(line, selectionWords...) {
			return approve("Seção 20: Motivo de encerramento devidamente marcado (detectado em análise secundária).")
		}
	}
	return reject("Seção 20: Nenhum motivo de encerramento selecionado. Um dos três motivos deve ser marcado.")
}

func lowerLines(text string) []string {
	return strings.Split(strings.ToLower(text), "\n")
}

func ruleByID(id int) (sectionRule, bool) {
	for _, r := range sectionRules {
		if r.id == id {
			return r, true
		}
	}
	return sectionRule{}, false
}

// Verify runs the deterministic check for a section against recognition text.
// Unknown sections, or sections not present in the text, are inconclusive.
func Verify(sectionID int, recognitionText string) Verdict {
	rule, ok := ruleByID(sectionID)
	if !ok {
		return Inconclusive
	}
	return evaluate(rule, lowerLines(recognitionText))
}

func evaluate(rule sectionRule, lines []string) Verdict {
	if !rule.located(lines) {
		return Inconclusive
	}
	return rule.verify(lines)
}

// ApplyOverrides returns a new row slice where rows for the checked sections
// carry the deterministic verdict whenever it is conclusive.
func ApplyOverrides(rows []models.AnalysisRow, recognitionText string) []models.AnalysisRow {
	lines := lowerLines(recognitionText)
	verdicts := make(map[int]Verdict, len(sectionRules))
	out := make([]models.AnalysisRow, len(rows))
	for i, row := range rows {
		out[i] = row
		for _, rule := range sectionRules {
			if !rule.matchesRow(row.Section) {
				continue
			}
			v, seen := verdicts[rule.id]
			if !seen {
				v = evaluate(rule, lines)
				verdicts[rule.id] = v
			}
			if v.Conclusive {
				out[i] = row.WithVerdict(v.Status, v.Comment)
			}
			break
		}
	}
	return out
}
