package extractor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// parseModelOutput converts the raw model text into a ParsedTransaction.
// Empty output yields nil so the caller can ask the user to rephrase.
func parseModelOutput(raw string, today time.Time) (*domain.ParsedTransaction, error) {
	clean := cleanModelJSON(raw)
	if clean == "" || clean == "null" || clean == "{}" {
		return nil, nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return nil, fmt.Errorf("parseModelOutput: unmarshal JSON: %v: %w", err, domain.ErrMalformedResponse)
	}

	amount, err := getFloat64Field(obj, "amount", true)
	if err != nil {
		return nil, fmt.Errorf("parseModelOutput: %v: %w", err, domain.ErrMalformedResponse)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount == 0 {
		return nil, fmt.Errorf("parseModelOutput: amount %v: %w", amount, domain.ErrMalformedResponse)
	}

	typ, err := getStringField(obj, "type", false)
	if err != nil {
		return nil, fmt.Errorf("parseModelOutput: %v: %w", err, domain.ErrMalformedResponse)
	}
	txType := domain.TransactionType(strings.ToUpper(strings.TrimSpace(typ)))
	if txType == "" {
		txType = domain.Expense
	}
	if !txType.Valid() {
		return nil, fmt.Errorf("parseModelOutput: unknown type %q: %w", typ, domain.ErrMalformedResponse)
	}

	curRaw, err := getStringField(obj, "currency", false)
	if err != nil {
		return nil, fmt.Errorf("parseModelOutput: %v: %w", err, domain.ErrMalformedResponse)
	}
	cur := domain.BaseCurrency
	if strings.TrimSpace(curRaw) != "" {
		parsed, ok := domain.ParseCurrency(curRaw)
		if !ok {
			return nil, fmt.Errorf("parseModelOutput: unknown currency %q: %w", curRaw, domain.ErrMalformedResponse)
		}
		cur = parsed
	}

	date, err := getStringField(obj, "date", false)
	if err != nil {
		return nil, fmt.Errorf("parseModelOutput: %v: %w", err, domain.ErrMalformedResponse)
	}
	date = strings.TrimSpace(date)
	if _, perr := time.Parse(domain.DateLayout, date); perr != nil {
		date = today.Format(domain.DateLayout)
	}

	category, err := getStringField(obj, "category", false)
	if err != nil {
		return nil, fmt.Errorf("parseModelOutput: %v: %w", err, domain.ErrMalformedResponse)
	}
	description, err := getStringField(obj, "description", false)
	if err != nil {
		return nil, fmt.Errorf("parseModelOutput: %v: %w", err, domain.ErrMalformedResponse)
	}

	return &domain.ParsedTransaction{
		Amount:      math.Abs(amount),
		Currency:    cur,
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Date:        date,
		Type:        txType,
	}, nil
}

// cleanModelJSON strips markdown fences and anything outside the outer object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	val, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if required && strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return val, nil
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %q is not a number", key, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}
