package provider

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/saeedalam/stackforge/pkg/types"
)

// Gemini is the structured-schema backend. The request declares the
// blueprint schema, so the response text is expected to be bare JSON.
type Gemini struct {
	baseClient
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	errorEnvelope
}

// Name implements Provider
func (g *Gemini) Name() string {
	return types.ProviderGoogle
}

// Call implements Provider
func (g *Gemini) Call(ctx context.Context, systemInstruction, userPrompt string) (text string, err error) {
	start := time.Now()
	defer func() { g.observe(g.Name(), start, err) }()

	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   BlueprintSchema(),
		},
	}

	endpoint := g.baseURL + "/v1beta/models/" + url.PathEscape(g.model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": g.apiKey}

	var resp geminiResponse
	if err := g.doJSON(ctx, endpoint, headers, reqBody, &resp); err != nil {
		return "", err
	}
	if msg := resp.message(); msg != "" {
		return "", classify(resp.code(), msg, &HTTPError{StatusCode: resp.code(), Message: msg})
	}
	return extractGeminiText(resp), nil
}

func extractGeminiText(resp geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// BlueprintSchema is the declared output schema: an object with
// description, structure and files[{path, content, language}], all required.
func BlueprintSchema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "STRING", "description": desc}
	}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"description": str("Short description of the project"),
			"structure":   str("ASCII tree of the project folders and files"),
			"files": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"path":     str("Relative file path, e.g. src/index.js"),
						"content":  str("Complete file content"),
						"language": str("Language of the file, e.g. javascript"),
					},
					"required": []string{"path", "content", "language"},
				},
			},
		},
		"required": []string{"description", "structure", "files"},
	}
}
