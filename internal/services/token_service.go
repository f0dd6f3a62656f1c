package services

import (
	// Сторонние библиотеки
	"github.com/google/uuid"
)

// NewIdentifier генерирует публичный идентификатор загрузки (UUID v4).
// Он же - имя файла в хранилище без расширения.
func NewIdentifier() string {
	return uuid.NewString()
}

// ValidIdentifier проверяет, что строка похожа на выданный идентификатор.
// Мусор из URL отсекаем до запроса в БД.
func ValidIdentifier(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
