package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// contentGenerator is the part of genai.Models the extractor calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini extracts transactions with a Gemini model constrained to a JSON schema.
type Gemini struct {
	models contentGenerator
	model  string
	now    func() time.Time
}

// NewGemini creates a Gemini API client authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("NewGemini: api key: %w", domain.ErrInputMissing)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{models: models, model: model, now: time.Now}
}

// Extract implements Extractor.
func (g *Gemini) Extract(ctx context.Context, text string, known []string) (*domain.ParsedTransaction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("Extract: text: %w", domain.ErrInputMissing)
	}

	today := g.now()
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildPrompt(known, today), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    transactionSchema(),
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Extract: generate content: %w", classifyAPIError(err))
	}
	if resp == nil {
		return nil, nil
	}

	parsed, err := parseModelOutput(resp.Text(), today)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Model returned unusable output")
		return nil, fmt.Errorf("Extract: %w", err)
	}
	return parsed, nil
}

func transactionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount":      {Type: genai.TypeNumber, Description: "Сумма, положительное число"},
			"currency":    {Type: genai.TypeString, Enum: []string{string(domain.UAH), string(domain.USD)}},
			"category":    {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
			"date":        {Type: genai.TypeString, Description: "YYYY-MM-DD"},
			"type":        {Type: genai.TypeString, Enum: []string{string(domain.Income), string(domain.Expense)}},
		},
		Required:         []string{"amount", "currency", "category", "description", "date", "type"},
		PropertyOrdering: []string{"amount", "currency", "category", "description", "date", "type"},
	}
}

// classifyAPIError maps a genai failure onto the shared error taxonomy.
func classifyAPIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	code, status := 0, ""
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status = apiErrPtr.Code, apiErrPtr.Status
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden ||
		status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED":
		return fmt.Errorf("%v: %w", err, domain.ErrUpstreamAuth)
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Error()), "api key"):
		return fmt.Errorf("%v: %w", err, domain.ErrUpstreamAuth)
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%v: %w", err, domain.ErrUpstreamRateLimited)
	}
	return fmt.Errorf("%v: %w", err, domain.ErrUpstreamUnavailable)
}
