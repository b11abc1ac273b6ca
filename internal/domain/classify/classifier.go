// Package classify assigns categories to imported transactions with a
// Gemini model constrained to a JSON response schema.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/doubloon-app/doubloon/pkg/money"
)

// Request describes one transaction to classify.
type Request struct {
	Description string
	Detail      string
	AmountMinor int64
	Date        time.Time
	// Categories is the set of valid category names the model must pick from.
	Categories []string
}

// Result is the model's verdict for one transaction.
type Result struct {
	CategoryName string  `json:"category_name"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	IsShared     bool    `json:"is_shared"`
}

// Classifier assigns a category to a transaction.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Result, error)
}

const systemInstruction = `Sei l'assistente contabile di una coppia italiana. Classifichi i movimenti
del conto corrente in categorie di spesa. Per ogni movimento ricevi la
descrizione bancaria, l'importo assoluto, la data e l'elenco delle
categorie disponibili.

Regole:
- category_name DEVE essere una delle categorie elencate, scritta identica.
- confidence è la tua fiducia nella scelta, tra 0 e 1.
- reasoning è una frase breve in italiano che spiega la scelta.
- is_shared è true se la spesa è tipicamente condivisa dalla coppia
  (affitto, spesa alimentare, bollette, cene insieme), false se personale.`

var _ Classifier = (*GeminiClassifier)(nil)

// GeminiClassifier calls the Gemini API with a fixed response schema.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClassifier{client: client, model: model}, nil
}

func (c *GeminiClassifier) Classify(ctx context.Context, req Request) (*Result, error) {
	contents := []*genai.Content{
		{Role: "system", Parts: []*genai.Part{{Text: systemInstruction}}},
		{Role: "user", Parts: []*genai.Part{{Text: buildPrompt(req)}}},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	return decodeResult([]byte(resp.Text()), req.Categories)
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Movimento da classificare:\n")
	fmt.Fprintf(&b, "- Descrizione: %s\n", req.Description)
	if req.Detail != "" {
		fmt.Fprintf(&b, "- Dettagli: %s\n", req.Detail)
	}
	amount := req.AmountMinor
	if amount < 0 {
		amount = -amount
	}
	fmt.Fprintf(&b, "- Importo: %s\n", money.FormatEUR(amount))
	fmt.Fprintf(&b, "- Data: %s\n", req.Date.Format("02/01/2006"))
	fmt.Fprintf(&b, "\nCategorie disponibili:\n")
	for _, name := range req.Categories {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category_name": {Type: genai.TypeString, Description: "Una delle categorie elencate, identica."},
			"confidence":    {Type: genai.TypeNumber, Description: "Fiducia nella scelta, tra 0 e 1."},
			"reasoning":     {Type: genai.TypeString, Description: "Breve spiegazione in italiano."},
			"is_shared":     {Type: genai.TypeBoolean, Description: "True se la spesa è condivisa dalla coppia."},
		},
		Required: []string{"category_name", "confidence", "reasoning", "is_shared"},
	}
}

// decodeResult parses the model's JSON and rejects categories outside the
// allowed set.
func decodeResult(data []byte, allowed []string) (*Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode classification response: %w", err)
	}

	valid := false
	for _, name := range allowed {
		if strings.EqualFold(name, result.CategoryName) {
			result.CategoryName = name
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("model returned unknown category %q", result.CategoryName)
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	return &result, nil
}

// ErrNotConfigured is returned when classification runs without a Gemini
// API key.
var ErrNotConfigured = fmt.Errorf("classifier not configured, set GEMINI_API_KEY")

// DisabledClassifier stands in when no API key is configured, so the rest
// of the application keeps working.
type DisabledClassifier struct{}

func NewDisabledClassifier() *DisabledClassifier { return &DisabledClassifier{} }

func (*DisabledClassifier) Classify(context.Context, Request) (*Result, error) {
	return nil, ErrNotConfigured
}
