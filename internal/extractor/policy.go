package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// Rule names the classification rule that decided a transaction type.
type Rule string

const (
	RuleNone       Rule = ""
	RuleMother     Rule = "mother"
	RuleUncleVova  Rule = "uncle_vova"
	RuleSpendVerb  Rule = "spend_verb"
	RulePurchase   Rule = "purchase"
	RuleSalary     Rule = "salary"
	RulePersonName Rule = "person_name"
)

var (
	motherWords = []string{"mom", "mother", "mum", "mommy"}

	spendPrefixes = []string{
		"отдал", "отдала", "потрат", "заплат", "оплат", "купил", "купила", "купить",
		"віддав", "віддала", "витрат", "сплат", "купив",
		"gave", "spent", "paid", "bought",
	}

	purchasePrefixes = []string{
		"такси", "продукт", "кафе", "ресторан", "коммунал", "комуналк", "аптек",
		"магазин", "бензин", "кино", "обед", "ужин", "кофе", "аренд", "интернет",
		"taxi", "grocer", "restaurant", "cafe", "coffee", "utilit", "rent",
	}

	salaryPrefixes = []string{"зарплат", "зп", "аванс", "преми", "кэшбэк", "кешбек", "salary", "paycheck", "cashback"}

	personNames = []string{
		"миша", "саша", "оля", "иван", "петр", "петя", "вася", "дима", "коля", "катя",
		"маша", "аня", "лена", "наташа", "таня", "сергей", "андрей", "олег", "игорь",
		"юля", "настя", "женя", "вова", "влад", "артем", "максим", "никита", "денис",
		"костя", "паша", "рома", "света", "оксана", "тарас", "богдан", "александр",
		"алексей", "дмитрий", "михаил", "николай", "юрий", "виктор", "ирина", "елена",
		"олександр", "олексій", "дмитро", "андрій", "сергій", "микола", "іван", "петро",
		"юрій", "василь", "михайло", "віктор", "ірина", "олена", "марія", "сашко",
		"misha", "sasha", "olya", "ivan", "petr", "petya", "vasya", "dima", "kolya",
		"katya", "masha", "anya", "lena", "natasha", "tanya", "sergey", "andrey",
		"oleg", "igor", "yulia", "nastya", "zhenya", "vova", "vlad", "artem", "maxim",
		"nikita", "denis", "kostya", "pasha", "roma", "sveta", "john", "alex", "anna",
		"maria", "peter", "mike", "oleksandr", "dmytro", "andriy",
	}

	// nameForms holds every accepted spelling of personNames, case forms
	// included. Latin names match only as written.
	nameForms = buildNameForms(personNames)
)

// Case endings by the last letter of a Cyrillic name.
var (
	softEndings      = []string{"а", "я", "ы", "и", "і", "е", "у", "ю", "ой", "ей", "ою", "ею"}
	neuterEndings    = []string{"о", "а", "у", "е", "ом", "ові"}
	shortIEndings    = []string{"я", "ю", "е", "ем", "є", "єм", "і"}
	consonantEndings = []string{"", "а", "у", "е", "ом", "ові", "і"}
)

func buildNameForms(names []string) map[string]struct{} {
	forms := make(map[string]struct{}, len(names)*8)
	for _, name := range names {
		forms[name] = struct{}{}
		last, size := utf8.DecodeLastRuneInString(name)
		if last < unicode.MaxASCII {
			continue
		}
		stem, endings := name[:len(name)-size], softEndings
		switch last {
		case 'а', 'я':
		case 'о':
			endings = neuterEndings
		case 'й', 'ь':
			endings = shortIEndings
		default:
			stem, endings = name, consonantEndings
		}
		for _, e := range endings {
			forms[stem+e] = struct{}{}
		}
	}
	return forms
}

// ClassifyType applies the named-sender and wording rules to text.
// ok is false when no rule fires and the model's answer should stand.
func ClassifyType(text string) (domain.TransactionType, Rule, bool) {
	tokens := tokenize(text)

	for i, tok := range tokens {
		if isMother(tok) {
			return domain.Expense, RuleMother, true
		}
		if i+1 < len(tokens) && isUncleVova(tok, tokens[i+1]) {
			return domain.Expense, RuleUncleVova, true
		}
	}
	if anyPrefix(tokens, spendPrefixes) {
		return domain.Expense, RuleSpendVerb, true
	}
	if anyPrefix(tokens, purchasePrefixes) {
		return domain.Expense, RulePurchase, true
	}
	if anyPrefix(tokens, salaryPrefixes) {
		return domain.Income, RuleSalary, true
	}
	if hasAmount(tokens) && PersonName(tokens) != "" {
		return domain.Income, RulePersonName, true
	}
	return "", RuleNone, false
}

// ApplyPolicy overrides p.Type when a deterministic rule covers text.
func ApplyPolicy(text string, p *domain.ParsedTransaction) Rule {
	if p == nil {
		return RuleNone
	}
	t, rule, ok := ClassifyType(text)
	if ok {
		p.Type = t
	}
	return rule
}

// PersonName returns the first token that is a known given name in one of
// its case forms.
func PersonName(tokens []string) string {
	for _, tok := range tokens {
		if _, ok := nameForms[tok]; ok {
			return tok
		}
	}
	return ""
}

func isMother(tok string) bool {
	for _, w := range motherWords {
		if tok == w {
			return true
		}
	}
	// мама, маме, маму, мамы, мамі, мамой, мамочке
	if strings.HasPrefix(tok, "мамочк") {
		return true
	}
	return utf8.RuneCountInString(tok) <= 5 && strings.HasPrefix(tok, "мам")
}

func isUncleVova(a, b string) bool {
	uncle := strings.HasPrefix(a, "дяд") || a == "uncle"
	vova := strings.HasPrefix(b, "вов") || b == "vova"
	return uncle && vova
}

func anyPrefix(tokens, prefixes []string) bool {
	for _, tok := range tokens {
		for _, p := range prefixes {
			if strings.HasPrefix(tok, p) {
				return true
			}
		}
	}
	return false
}

func hasAmount(tokens []string) bool {
	for _, tok := range tokens {
		for _, r := range tok {
			if unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
