package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// MockContentGenerator is a mock implementation of contentGenerator for testing.
type MockContentGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *MockContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
}

func TestGemini_Extract(t *testing.T) {
	var gotModel string
	var gotConfig *genai.GenerateContentConfig
	var gotContents []*genai.Content

	gen := &MockContentGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotContents, gotConfig = model, contents, config
			return textResponse(`{"amount":200,"currency":"USD","category":"Переводы","description":"Миша","date":"2025-03-14","type":"INCOME"}`), nil
		},
	}
	g := newGemini(gen, "")
	g.now = fixedNow

	p, err := g.Extract(context.Background(), "Misha 200 dollars", []string{"Продукты", "продукты", "Переводы"})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, 200.0, p.Amount)
	assert.Equal(t, domain.USD, p.Currency)
	assert.Equal(t, domain.Income, p.Type)
	assert.Equal(t, "2025-03-14", p.Date)

	assert.Equal(t, DefaultModelName, gotModel)
	require.Len(t, gotContents, 1)
	assert.Equal(t, "Misha 200 dollars", gotContents[0].Parts[0].Text)
	assert.Equal(t, "application/json", gotConfig.ResponseMIMEType)
	require.NotNil(t, gotConfig.ResponseSchema)
	assert.ElementsMatch(t, []string{"amount", "currency", "category", "description", "date", "type"}, gotConfig.ResponseSchema.Required)
	assert.Equal(t, []string{"UAH", "USD"}, gotConfig.ResponseSchema.Properties["currency"].Enum)

	instruction := gotConfig.SystemInstruction.Parts[0].Text
	assert.Contains(t, instruction, "Сегодняшняя дата: 2025-03-14")
	assert.Contains(t, instruction, "Существующие категории: Продукты, Переводы")
}

func TestGemini_Extract_Defaults(t *testing.T) {
	gen := &MockContentGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("```json\n{\"amount\":\"150,5\",\"category\":\"Такси\",\"description\":\"такси\",\"type\":\"expense\"}\n```"), nil
		},
	}
	g := newGemini(gen, "gemini-test")
	g.now = fixedNow

	p, err := g.Extract(context.Background(), "такси 150,5", nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 150.5, p.Amount)
	assert.Equal(t, domain.UAH, p.Currency)
	assert.Equal(t, "2025-03-14", p.Date)
	assert.Equal(t, domain.Expense, p.Type)
}

func TestGemini_Extract_EmptyResultIsNil(t *testing.T) {
	for _, body := range []string{"", "   ", "null"} {
		gen := &MockContentGenerator{
			GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse(body), nil
			},
		}
		p, err := newGemini(gen, "").Extract(context.Background(), "hello", nil)
		assert.NoError(t, err)
		assert.Nil(t, p)
	}

	gen := &MockContentGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}
	p, err := newGemini(gen, "").Extract(context.Background(), "hello", nil)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestGemini_Extract_Malformed(t *testing.T) {
	bodies := []string{
		`{"amount": "lots"}`,
		`{"currency":"USD"}`,
		`{"amount":10,"currency":"EUR"}`,
		`{"amount":10,"type":"TRANSFER"}`,
		`not json at all {`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			gen := &MockContentGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return textResponse(body), nil
				},
			}
			_, err := newGemini(gen, "").Extract(context.Background(), "text", nil)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}

func TestGemini_Extract_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "forbidden", err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, wantErr: domain.ErrUpstreamAuth},
		{name: "bad key", err: genai.APIError{Code: 400, Message: "API key not valid"}, wantErr: domain.ErrUpstreamAuth},
		{name: "quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, wantErr: domain.ErrUpstreamRateLimited},
		{name: "pointer quota", err: &genai.APIError{Code: 429}, wantErr: domain.ErrUpstreamRateLimited},
		{name: "server", err: genai.APIError{Code: 503, Status: "UNAVAILABLE"}, wantErr: domain.ErrUpstreamUnavailable},
		{name: "network", err: fmt.Errorf("dial tcp: %w", errors.New("connection refused")), wantErr: domain.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockContentGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return nil, tt.err
				},
			}
			_, err := newGemini(gen, "").Extract(context.Background(), "Маме 500", nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGemini_Extract_MissingText(t *testing.T) {
	_, err := newGemini(&MockContentGenerator{}, "").Extract(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, domain.ErrInputMissing)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt([]string{"Еда", " еда ", "", "Такси"}, fixedNow())

	assert.Contains(t, prompt, "Мама")
	assert.Contains(t, prompt, "Дядя Вова")
	assert.Contains(t, prompt, "всегда INCOME")
	assert.Contains(t, prompt, "\"отдал\"")
	assert.True(t, strings.HasSuffix(prompt, "Существующие категории: Еда, Такси\n"))

	empty := BuildPrompt(nil, fixedNow())
	assert.Contains(t, empty, "Существующих категорий пока нет.")
}

func TestVocabulary(t *testing.T) {
	txs := []domain.Transaction{
		{Category: "Продукты"},
		{Category: "продукты "},
		{Category: "Такси"},
		{Category: ""},
		{Category: "ПРОДУКТЫ"},
	}
	assert.Equal(t, []string{"Продукты", "Такси"}, Vocabulary(txs))
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":1} thanks", `{"a":1}`},
		{"```", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanModelJSON(tt.in))
	}
}
