package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/permitauditor/internal/gcp"
	"github.com/Lllllllleong/permitauditor/internal/models"
)

// contentGenerator is the slice of *genai.GenerativeModel the capabilities use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// VertexOCR recognises single-page PDFs referenced by gs:// URIs.
type VertexOCR struct {
	model contentGenerator
}

func NewVertexOCR(model contentGenerator) *VertexOCR {
	return &VertexOCR{model: model}
}

func pageFile(page models.Page) genai.Part {
	return genai.FileData{MIMEType: "application/pdf", FileURI: page.ImageRef}
}

func (o *VertexOCR) RecognizePage(ctx context.Context, page models.Page) (string, error) {
	resp, err := o.model.GenerateContent(ctx, pageFile(page), genai.Text(gcp.OCRUserPrompt))
	if err != nil {
		return "", fmt.Errorf("OCR of page %d: %w", page.Index, err)
	}
	return responseText(resp, "page", page.Index)
}

func (o *VertexOCR) RecognizeBatch(ctx context.Context, pages []models.Page) (string, error) {
	if len(pages) == 0 {
		return "", nil
	}
	parts := []genai.Part{
		genai.Text(gcp.OCRUserPrompt),
		genai.Text(fmt.Sprintf(gcp.BatchOCRInstruction, PageMarker(pages[0].Index))),
	}
	for _, page := range pages {
		parts = append(parts, genai.Text(fmt.Sprintf("---- PAGE %d ----", page.Index)), pageFile(page))
	}
	resp, err := o.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("batch OCR of pages %d-%d: %w", pages[0].Index, pages[len(pages)-1].Index, err)
	}
	return responseText(resp, "firstPage", pages[0].Index)
}

// VertexJudgment asks the judgment model for a page's findings table.
type VertexJudgment struct {
	model contentGenerator
}

func NewVertexJudgment(model contentGenerator) *VertexJudgment {
	return &VertexJudgment{model: model}
}

func (j *VertexJudgment) Analyze(ctx context.Context, req JudgmentRequest) (string, error) {
	permit := req.PermitNumber
	if permit == "" {
		permit = models.UnknownPermit
	}
	docContext := req.DocumentContext
	if docContext == "" {
		docContext = "(não disponível)"
	}
	prompt := fmt.Sprintf(gcp.JudgmentUserPrompt, req.PageNumber, permit, docContext, req.RecognitionText)
	resp, err := j.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("analysis of page %d: %w", req.PageNumber, err)
	}
	return responseText(resp, "page", req.PageNumber)
}

// VertexSummarizer produces the document-level context passed to every page.
type VertexSummarizer struct {
	model contentGenerator
}

func NewVertexSummarizer(model contentGenerator) *VertexSummarizer {
	return &VertexSummarizer{model: model}
}

func (s *VertexSummarizer) Summarize(ctx context.Context, pdfURI string) (string, error) {
	resp, err := s.model.GenerateContent(ctx,
		genai.FileData{MIMEType: "application/pdf", FileURI: pdfURI},
		genai.Text(gcp.SummaryUserPrompt))
	if err != nil {
		return "", fmt.Errorf("document summary: %w", err)
	}
	return responseText(resp, "summary", 0)
}

// responseText concatenates the text parts of the first candidate, strips code
// fences and rejects empty or refused answers.
func responseText(resp *genai.GenerateContentResponse, key string, value int) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var content strings.Builder
	var textPartsFound int
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
			textPartsFound++
		}
	}
	if textPartsFound > 1 {
		slog.Debug("Model response contained several text parts; they have been concatenated.", key, value, "parts", textPartsFound)
	}

	text := strings.TrimSpace(content.String())
	text = strings.TrimPrefix(text, "```markdown")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}

	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "", fmt.Errorf("%w: response contains %q", ErrModelRefusal, phrase)
		}
	}
	return text, nil
}
