package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
)

var amountPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)(k|к)?`)

var usdWords = []string{"доллар", "долар", "dollar", "usd", "бакс", "buck"}
var uahWords = []string{"грн", "гривн", "гривен", "гривень", "uah"}

// categoryHints maps wording to the category the rules extractor assigns.
var categoryHints = []struct {
	prefix   string
	category string
}{
	{"такси", "Такси"},
	{"taxi", "Такси"},
	{"продукт", "Продукты"},
	{"grocer", "Продукты"},
	{"кафе", "Ресторан"},
	{"ресторан", "Ресторан"},
	{"обед", "Ресторан"},
	{"ужин", "Ресторан"},
	{"кофе", "Ресторан"},
	{"коммунал", "Коммуналка"},
	{"комуналк", "Коммуналка"},
	{"аптек", "Аптека"},
	{"бензин", "Бензин"},
	{"кино", "Кино"},
	{"зарплат", "Зарплата"},
	{"salary", "Зарплата"},
}

// Rules extracts transactions locally with the same classification policy
// the model is instructed with. It never calls the network.
type Rules struct {
	now func() time.Time
}

// NewRules returns a rules-based extractor.
func NewRules() *Rules {
	return &Rules{now: time.Now}
}

// Extract implements Extractor.
func (r *Rules) Extract(ctx context.Context, text string, known []string) (*domain.ParsedTransaction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("Extract: text: %w", domain.ErrInputMissing)
	}

	amount, ok := findAmount(text)
	if !ok {
		return nil, nil
	}

	tokens := tokenize(text)
	p := &domain.ParsedTransaction{
		Amount:      amount,
		Currency:    findCurrency(text, tokens),
		Description: text,
		Date:        r.now().Format(domain.DateLayout),
		Type:        domain.Expense,
	}

	t, rule, decided := ClassifyType(text)
	if decided {
		p.Type = t
	}
	p.Category = ruleCategory(rule, tokens)

	return p, nil
}

func findAmount(text string) (float64, bool) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if m[2] != "" {
		v *= 1000
	}
	return v, true
}

func findCurrency(text string, tokens []string) domain.Currency {
	if strings.Contains(text, "$") {
		return domain.USD
	}
	if anyPrefix(tokens, usdWords) {
		return domain.USD
	}
	if strings.Contains(text, "₴") || anyPrefix(tokens, uahWords) {
		return domain.UAH
	}
	return domain.BaseCurrency
}

func ruleCategory(rule Rule, tokens []string) string {
	switch rule {
	case RuleMother, RuleUncleVova:
		return "Семья"
	case RulePersonName:
		return "Переводы"
	}
	for _, hint := range categoryHints {
		for _, tok := range tokens {
			if strings.HasPrefix(tok, hint.prefix) {
				return hint.category
			}
		}
	}
	if rule == RuleSalary {
		return "Зарплата"
	}
	return "Другое"
}
