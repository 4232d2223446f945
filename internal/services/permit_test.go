package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPermitNumber(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		want    string
	}{
		{"pt prefix", []string{"Permissão de Trabalho PT-20451"}, "20451"},
		{"ptw with space", []string{"PTW 7788-01 emitida"}, "7788-01"},
		{"english permit", []string{"Permit no. 123-45678"}, "123-45678"},
		{"portuguese permit", []string{"Permissão número 123 45678"}, "123 45678"},
		{"falls back to later source", []string{"nada aqui", "PT-9"}, "9"},
		{"nothing", []string{"", "sem identificador"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPermitNumber(tt.sources...))
		})
	}
}

func TestDetectGuideColor(t *testing.T) {
	assert.Equal(t, GuideGreen, DetectGuideColor("[DOCUMENT TYPE: GUIA VERDE]\nbranca no rodapé"))
	assert.Equal(t, GuideWhite, DetectGuideColor("Via Branca - arquivo"))
	assert.Equal(t, GuideYellow, DetectGuideColor("cópia amarela"))
	assert.Equal(t, GuideUnknown, DetectGuideColor("sem indicação de cor"))

	assert.True(t, GuideYellow.Skipped())
	assert.False(t, GuideWhite.Skipped())
	assert.False(t, GuideUnknown.Skipped())
}
