package reconcile

import (
	"strings"
	"unicode"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/mcc"
	"github.com/jbrukh/bayesian"
)

// DefaultConfidence is the minimum posterior a suggestion must reach.
const DefaultConfidence = 0.8

// Classifier suggests categories for imported records from the descriptions
// the user has already categorized. Income and expense records are learned
// separately, so a suggestion always comes from records of the same type.
type Classifier struct {
	byType     map[domain.TransactionType]*model
	confidence float64
}

// model is one naive Bayes classifier and the labels it was trained on.
type model struct {
	cl      *bayesian.Classifier
	classes []bayesian.Class
}

type sample struct {
	terms []string
	class bayesian.Class
}

// NewClassifier trains on history. Records carrying a fallback label teach
// nothing and are skipped. A type with fewer than two distinct categories
// never gets suggestions.
func NewClassifier(history []domain.Transaction, confidence float64) *Classifier {
	if confidence <= 0 || confidence > 1 {
		confidence = DefaultConfidence
	}
	c := &Classifier{byType: make(map[domain.TransactionType]*model), confidence: confidence}

	cats := make(map[domain.TransactionType]*Categories)
	classes := make(map[domain.TransactionType][]bayesian.Class)
	samples := make(map[domain.TransactionType][]sample)
	for _, tx := range history {
		if tx.Category == "" || mcc.IsFallback(tx.Category) || !tx.Type.Valid() {
			continue
		}
		terms := terms(tx.Description)
		if len(terms) == 0 {
			continue
		}
		known, ok := cats[tx.Type]
		if !ok {
			known = NewCategories(nil)
			cats[tx.Type] = known
		}
		label, found := known.Reconcile(tx.Category)
		if !found {
			known.byKey[normalizeCategory(label)] = label
			classes[tx.Type] = append(classes[tx.Type], bayesian.Class(label))
		}
		samples[tx.Type] = append(samples[tx.Type], sample{terms: terms, class: bayesian.Class(label)})
	}

	for t, cls := range classes {
		if len(cls) < 2 {
			continue
		}
		m := &model{cl: bayesian.NewClassifier(cls...), classes: cls}
		for _, s := range samples[t] {
			m.cl.Learn(s.terms, s.class)
		}
		c.byType[t] = m
	}
	return c
}

// Suggest returns a category learned from records of type t for
// description when the classifier is confident enough.
func (c *Classifier) Suggest(t domain.TransactionType, description string) (string, bool) {
	if c == nil {
		return "", false
	}
	m, ok := c.byType[t]
	if !ok {
		return "", false
	}
	doc := terms(description)
	if len(doc) == 0 {
		return "", false
	}
	scores, inx, strict := m.cl.ProbScores(doc)
	if !strict || inx < 0 || inx >= len(scores) || scores[inx] < c.confidence {
		return "", false
	}
	return string(m.classes[inx]), true
}

// Relabel replaces fallback categories on txs with confident suggestions
// and reports how many records were changed.
func (c *Classifier) Relabel(txs []domain.Transaction) int {
	changed := 0
	for i := range txs {
		if !mcc.IsFallback(txs[i].Category) {
			continue
		}
		if label, ok := c.Suggest(txs[i].Type, txs[i].Description); ok {
			txs[i].Category = label
			changed++
		}
	}
	return changed
}

func terms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
