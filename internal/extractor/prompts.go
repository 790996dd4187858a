package extractor

import (
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
)

const instructionPrompt = "Ты финансовый помощник. Извлеки из сообщения пользователя ровно одну транзакцию.\n" +
	"Базовая валюта: UAH. Дополнительная валюта: USD.\n\n" +
	"Правила определения типа (type):\n" +
	"1. Мама, маме, маму и любые упоминания мамы: всегда EXPENSE. Категория \"Семья\" или \"Переводы\".\n" +
	"2. Дядя Вова, дяде Вове: всегда EXPENSE. Категория \"Семья\" или \"Помощь\".\n" +
	"3. Любое другое имя человека вместе с суммой (Миша, Саша, Оля, Иван, Петр и т.д.): всегда INCOME. Это перевод от этого человека.\n" +
	"4. Зарплата, аванс, премия и переводы от людей: INCOME.\n" +
	"5. Покупки, услуги, еда, такси, коммунальные платежи: EXPENSE.\n" +
	"6. Глаголы \"отдал\", \"потратил\", \"заплатил\": всегда EXPENSE.\n\n" +
	"Правила полей:\n" +
	"- amount: положительное число без знака.\n" +
	"- currency: UAH или USD. Если валюта не указана, используй UAH. Доллары, $, usd означают USD.\n" +
	"- date: формат YYYY-MM-DD. Если дата не указана, используй сегодняшнюю.\n" +
	"- category: если подходит одна из существующих категорий, используй её точное написание.\n" +
	"- description: коротко, на языке пользователя.\n" +
	"Верни только JSON без markdown.\n"

// BuildPrompt renders the extraction instruction for the given vocabulary
// and call date.
func BuildPrompt(known []string, today time.Time) string {
	var b strings.Builder
	b.WriteString(instructionPrompt)
	b.WriteString("\nСегодняшняя дата: ")
	b.WriteString(today.Format(domain.DateLayout))
	b.WriteString("\n")

	known = DedupCategories(known)
	if len(known) == 0 {
		b.WriteString("Существующих категорий пока нет.\n")
		return b.String()
	}

	b.WriteString("Существующие категории: ")
	b.WriteString(strings.Join(known, ", "))
	b.WriteString("\n")
	return b.String()
}
