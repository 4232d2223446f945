package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- OCR Model Prompts ---
const OCRSystemPrompt = "You are an OCR engine for scanned work permit forms. Transcribe every printed and handwritten mark exactly as it appears. Never summarise and never judge the content."
const OCRUserPrompt = `Transcribe the attached permit page.

Rules:
1. Keep the reading order of the form, section by section. Print each section heading as it appears (for example "14 - Operações Simultâneas").
2. Describe every checkbox as [Checked: <label>] or [Unchecked: <label>].
3. Describe every filled field as [Filled Field: <field name>] followed by the value, and every empty field as [Empty Field: <field name>].
4. Describe every signature as [Signed] or [Not Signed].
5. If the page header names the copy colour, print it on the first line as [DOCUMENT TYPE: GUIA BRANCA], [DOCUMENT TYPE: GUIA VERDE] or [DOCUMENT TYPE: GUIA AMARELA].
Return only the transcription.`

// BatchOCRInstruction is appended to batch requests. %s is an example marker.
const BatchOCRInstruction = `Several permit pages follow, each introduced by its page number. Transcribe each page with the rules above.
Before the transcription of each page print its marker on its own line, exactly like this: %s (with that page's number).
Do not merge pages and do not skip any page.`

// --- Judgment Model Prompts ---
const JudgmentSystemPrompt = "You are a work permit compliance auditor. You receive the transcription of one page of a permit and judge each section against the permit filling rules. You answer only with a markdown table."
const JudgmentUserPrompt = `Audit page %d of permit %s.

Document context:
%s

Page transcription:
%s

Answer with exactly one markdown table with these columns:
| Permit Number | Page Number | Page Summary | Section | Status | Comments |
Use one row per section found on the page. Status must be one of APROVADO, REPROVADO, CHECAGEM HUMANA NECESSARIA or N/A.
Write the comments in Portuguese. If the page carries no auditable section, emit a single row for "Conteúdo do Documento".`

// --- Summary Model Prompts ---
const SummarySystemPrompt = "You summarise work permit documents for an auditor."
const SummaryUserPrompt = `Summarise the attached permit in a few sentences: the permit number, the type of work, the location, the issuer and which copy colour (GUIA BRANCA, VERDE or AMARELA) it is. Plain text only.`

// Model names used when the environment does not override them.
const (
	DefaultOCRModel      = "gemini-1.5-pro"
	DefaultJudgmentModel = "gemini-1.5-pro"
)

// VertexClient holds all pre-configured generative models for our app.
type VertexClient struct {
	OCRModel      *genai.GenerativeModel
	JudgmentModel *genai.GenerativeModel
	SummaryModel  *genai.GenerativeModel
	baseClient    *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, ocrModelName, judgmentModelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if ocrModelName == "" {
		ocrModelName = DefaultOCRModel
	}
	if judgmentModelName == "" {
		judgmentModelName = DefaultJudgmentModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	safety := []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	// --- Configure the OCR model ---
	ocrModel := baseClient.GenerativeModel(ocrModelName)
	ocrModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(OCRSystemPrompt)},
	}
	ocrModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	ocrModel.SafetySettings = safety

	// --- Configure the judgment model ---
	judgmentModel := baseClient.GenerativeModel(judgmentModelName)
	judgmentModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(JudgmentSystemPrompt)},
	}
	judgmentModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.1),
	}
	judgmentModel.SafetySettings = safety

	// --- Configure the summary model ---
	summaryModel := baseClient.GenerativeModel(judgmentModelName)
	summaryModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SummarySystemPrompt)},
	}
	summaryModel.SafetySettings = safety

	return &VertexClient{
		OCRModel:      ocrModel,
		JudgmentModel: judgmentModel,
		SummaryModel:  summaryModel,
		baseClient:    baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
