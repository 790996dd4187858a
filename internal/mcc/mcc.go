// Package mcc maps merchant category codes to human category labels.
package mcc

import "github.com/dvloznov/smart-finance/internal/domain"

// Fallback labels for codes outside the curated table.
const (
	FallbackIncome  = "Income"
	FallbackExpense = "Expense"
)

var categories = map[int]string{
	5812: "Ресторан",
	5814: "Ресторан",
	5811: "Ресторан",

	5411: "Продукты",
	5499: "Продукты",

	4121: "Такси",

	4111: "Транспорт",
	4112: "Транспорт",
	4131: "Транспорт",

	5912: "Аптека",

	8011: "Врач",
	8021: "Врач",
	8041: "Врач",

	4900: "Коммуналка",
	4814: "Коммуналка",

	5311: "Покупки",
	5310: "Покупки",
	5331: "Покупки",
	5399: "Покупки",

	7832: "Кино",
	7833: "Кино",

	7911: "Развлечения",
	7922: "Развлечения",

	5542: "Бензин",
	5541: "Бензин",
}

// Category returns the label for code, or a generic label keyed on t.
func Category(code int, t domain.TransactionType) string {
	if label, ok := categories[code]; ok {
		return label
	}
	return Fallback(t)
}

// Fallback is the label used when no merchant code matches.
func Fallback(t domain.TransactionType) string {
	if t == domain.Income {
		return FallbackIncome
	}
	return FallbackExpense
}

// IsFallback reports whether label is one of the generic labels.
func IsFallback(label string) bool {
	return label == FallbackIncome || label == FallbackExpense
}

// Known lists the distinct curated labels in a stable order.
func Known() []string {
	return []string{
		"Ресторан", "Продукты", "Такси", "Транспорт", "Аптека", "Врач",
		"Коммуналка", "Покупки", "Кино", "Развлечения", "Бензин",
	}
}
