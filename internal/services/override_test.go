package services

import (
	"testing"

	"github.com/Lllllllleong/permitauditor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySimultaneousOperations(t *testing.T) {
	rejected := Verify(14, "Seção 14 - Operações Simultâneas\n[Checked: Sim] Existem operações simultâneas?\n[Empty Field: Quais]\n")
	require.True(t, rejected.Conclusive)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Contains(t, rejected.Comment, "operações simultâneas")

	approved := Verify(14, "Seção 14 - Operações Simultâneas\n[Checked: Sim]\n[Filled Field: Quais] Solda no tanque 3\n")
	require.True(t, approved.Conclusive)
	assert.Equal(t, models.StatusApproved, approved.Status)

	answeredNo := Verify(14, "14 - Operações Simultâneas\n[Checked: Não]\n")
	assert.Equal(t, models.StatusApproved, answeredNo.Status)
}

func TestVerifyCoIssuer(t *testing.T) {
	mismatch := Verify(15, "Seção 15 - Co-emissor\n[Filled Field: Nome] Maria\n[Not Signed]\n")
	assert.Equal(t, models.StatusRejected, mismatch.Status)

	matched := Verify(15, "Seção 15 - Co-emissor\n[Filled Field: Nome] Maria\n[Signed]\n")
	assert.Equal(t, models.StatusApproved, matched.Status)

	empty := Verify(15, "Seção 15 - Co-emissor\n[Empty Field: Nome]\n")
	assert.Equal(t, models.StatusApproved, empty.Status)
}

func TestVerifyAwareness(t *testing.T) {
	complete := Verify(18, "Seção 18 - Ciência da PT\n[Filled Field: Nome] A\n[Filled Field: Função] Eletricista\n[Signed]\n")
	assert.Equal(t, models.StatusApproved, complete.Status)

	partial := Verify(18, "Seção 18 - Ciência da PT\n[Filled Field: Nome] A\n[Filled Field: Função] Eletricista\n")
	assert.Equal(t, models.StatusRejected, partial.Status)

	blank := Verify(18, "Seção 18 - Ciência da PT\n[Empty Field: Nome]\n")
	assert.Equal(t, models.StatusApproved, blank.Status)
}

func TestVerifyClosure(t *testing.T) {
	checked := Verify(20, "Seção 20 - Encerramento\n[Checked: Término do trabalho]\n[Unchecked: Acidente]\n")
	assert.Equal(t, models.StatusApproved, checked.Status)

	secondary := Verify(20, "Seção 20 - Encerramento\nTrabalho concluído: marcado\n")
	assert.Equal(t, models.StatusApproved, secondary.Status)

	none := Verify(20, "Seção 20 - Encerramento\n[Unchecked: Término do trabalho]\n[Unchecked: Acidente]\n")
	assert.Equal(t, models.StatusRejected, none.Status)
}

func TestVerifyInconclusive(t *testing.T) {
	assert.Equal(t, Inconclusive, Verify(14, "página sem a seção procurada\n[Checked: Sim]"))
	assert.Equal(t, Inconclusive, Verify(7, "Seção 7 - Riscos"))
}

func TestApplyOverrides(t *testing.T) {
	text := "Seção 14 - Operações Simultâneas\n[Checked: Sim]\n"
	rows := []models.AnalysisRow{
		{PageNumber: 1, Section: "14 - Operações Simultâneas", Status: models.StatusApproved, Comments: "ok"},
		{PageNumber: 1, Section: "Operações simultâneas", Status: models.StatusHumanCheckRequired},
		{PageNumber: 1, Section: "140 - Anexos", Status: models.StatusApproved, Comments: "ok"},
		{PageNumber: 1, Section: "20 - Encerramento", Status: models.StatusApproved, Comments: "ok"},
	}

	got := ApplyOverrides(rows, text)
	require.Len(t, got, 4)

	assert.Equal(t, models.StatusRejected, got[0].Status)
	assert.Contains(t, got[0].Comments, "operações simultâneas")
	assert.Equal(t, models.StatusRejected, got[1].Status)
	assert.Equal(t, rows[2], got[2], "section 140 is not section 14")
	assert.Equal(t, rows[3], got[3], "section 20 is not on this page")

	assert.Equal(t, models.StatusApproved, rows[0].Status, "input rows are not modified")
}
