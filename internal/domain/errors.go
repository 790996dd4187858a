package domain

import "errors"

var (
	// ErrInputMissing means no text, token or required field was supplied.
	ErrInputMissing = errors.New("input missing")
	// ErrUpstreamAuth means the model API key or the bank token was rejected.
	ErrUpstreamAuth = errors.New("upstream rejected credentials")
	// ErrUpstreamRateLimited means a quota was exhausted or a 429 was returned.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	// ErrUpstreamUnavailable covers network failures and 5xx answers.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedResponse means an upstream answer had no usable structure.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrInvalidAmount means an amount or rate is not a finite positive number.
	ErrInvalidAmount = errors.New("invalid amount")

	ErrNotFound           = errors.New("not found")
	ErrIdentityUnresolved = errors.New("user identity unresolved")
	ErrNoAccounts         = errors.New("no bank accounts found")
	// ErrNoResult is returned when extraction produced nothing to save.
	ErrNoResult = errors.New("no transaction recognized")
)

// UserMessage turns an error into text that tells the user what to do next.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInputMissing):
		return "Введите текст или токен и попробуйте снова."
	case errors.Is(err, ErrUpstreamAuth):
		return "Неверный токен или ключ API. Проверьте настройки."
	case errors.Is(err, ErrUpstreamRateLimited):
		return "Превышен лимит запросов. Подождите немного и повторите."
	case errors.Is(err, ErrUpstreamUnavailable):
		return "Сервис временно недоступен. Попробуйте позже."
	case errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrNoResult):
		return "Не удалось распознать транзакцию. Попробуйте переформулировать."
	case errors.Is(err, ErrInvalidAmount):
		return "Введите положительное число."
	case errors.Is(err, ErrNotFound):
		return "Транзакция не найдена."
	case errors.Is(err, ErrIdentityUnresolved):
		return "Не удалось определить пользователя Telegram."
	case errors.Is(err, ErrNoAccounts):
		return "Не найдено счетов в Monobank."
	}
	return "Внутренняя ошибка сервера."
}
