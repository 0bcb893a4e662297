package provider

import (
	"context"
	"time"

	"github.com/saeedalam/stackforge/pkg/types"
)

// JSONDirective is appended to the system instruction for backends that
// cannot enforce an output schema.
const JSONDirective = "IMPORTANT: Return ONLY valid JSON matching the requested structure. Do not include markdown fences, explanations or any text outside the JSON object."

// OpenRouter is the free-form chat backend. Responses may contain prose or
// code fences around the JSON payload.
type OpenRouter struct {
	baseClient
	referer string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	errorEnvelope
}

// Name implements Provider
func (o *OpenRouter) Name() string {
	return types.ProviderOpenRouter
}

// Call implements Provider
func (o *OpenRouter) Call(ctx context.Context, systemInstruction, userPrompt string) (text string, err error) {
	start := time.Now()
	defer func() { o.observe(o.Name(), start, err) }()

	reqBody := chatCompletionRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction + "\n\n" + JSONDirective},
			{Role: "user", Content: userPrompt},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"HTTP-Referer":  o.referer,
		"X-Title":       "stackforge",
	}

	var resp chatCompletionResponse
	if err := o.doJSON(ctx, o.baseURL+"/api/v1/chat/completions", headers, reqBody, &resp); err != nil {
		return "", err
	}
	// OpenRouter reports some upstream failures inside a 200 response.
	if msg := resp.message(); msg != "" {
		return "", classify(resp.code(), msg, &HTTPError{StatusCode: resp.code(), Message: msg})
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
