package services

import (
	// Стандартные библиотеки
	"errors"
	"fmt"
)

// Виды ошибок сервисного слоя. HTTP-слой сопоставляет их со статусами.
var (
	ErrValidation   = errors.New("validation error") // 400
	ErrUnauthorized = errors.New("unauthorized")     // 401
	ErrNotFound     = errors.New("not found")        // 404
	ErrConflict     = errors.New("conflict")         // 409
	ErrInternal     = errors.New("internal error")   // 500
)

// Error - ошибка с сообщением для клиента.
// Message показывается клиенту, Err - только в логах сервера.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// PublicMessage возвращает текст, который можно отдать клиенту.
// Для внутренних и неизвестных ошибок - общий текст без подробностей.
func PublicMessage(err error, fallback string) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}
