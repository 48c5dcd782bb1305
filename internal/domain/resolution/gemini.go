package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiModelName is the default model for vendor classification.
const GeminiModelName = "gemini-2.0-flash"

// GeminiClassifier resolves vendor names through the Gemini API. One request
// carries a whole chunk of descriptions; the model answers a strict JSON
// array so partial parses fail the chunk, not the import.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier creates a classifier authenticated with apiKey. An
// empty key falls back to the genai client's own environment resolution.
func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = GeminiModelName
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

type geminiAnswer struct {
	Description   string  `json:"description"`
	VendorName    string  `json:"vendor_name"`
	GLAccountCode string  `json:"gl_account_code"`
	Confidence    float64 `json:"confidence"`
}

// Classify sends one chunk of descriptions and parses the suggestions.
func (g *GeminiClassifier) Classify(ctx context.Context, descriptions []string) ([]Suggestion, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	prompt := buildClassifyPrompt(descriptions)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty classifier response")
	}

	var answers []geminiAnswer
	if err := json.Unmarshal([]byte(stripModelFences(rawText)), &answers); err != nil {
		return nil, fmt.Errorf("unmarshal classifier response: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(answers))
	for _, a := range answers {
		if a.VendorName == "" {
			continue
		}
		if a.Confidence < 0 {
			a.Confidence = 0
		}
		if a.Confidence > 1 {
			a.Confidence = 1
		}
		suggestions = append(suggestions, Suggestion{
			Description:   a.Description,
			VendorName:    a.VendorName,
			GLAccountCode: a.GLAccountCode,
			Confidence:    a.Confidence,
		})
	}
	return suggestions, nil
}

func buildClassifyPrompt(descriptions []string) string {
	var b strings.Builder
	b.WriteString("You are a bookkeeping assistant resolving bank statement descriptions to vendor names.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- For each description below, identify the vendor (merchant or counterparty).\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects, one per input description, same order.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"description\": string, the input description verbatim\n")
	b.WriteString("- \"vendor_name\": string, the canonical vendor name, or \"\" if unknown\n")
	b.WriteString("- \"gl_account_code\": string, a plausible expense account code, or \"\"\n")
	b.WriteString("- \"confidence\": number between 0 and 1\n\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n\n")
	b.WriteString("Descriptions:\n")
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}
	return b.String()
}

// stripModelFences cleans Markdown fences and surrounding junk when the
// model ignores the formatting instructions.
func stripModelFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
