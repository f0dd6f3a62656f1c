package auth

import (
	// Стандартные библиотеки
	"errors"
	"fmt"

	// Сторонние библиотеки
	"golang.org/x/crypto/bcrypt"
)

// HashPassword принимает пароль в виде строки и возвращает его bcrypt-хеш.
// Используем bcrypt.DefaultCost - рекомендуемое значение по умолчанию.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash сравнивает пароль с хешем из БД.
// Соль встроена в сам bcrypt-хеш, отдельно ее хранить не нужно.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ErrPasswordTooLong - bcrypt не принимает пароли длиннее 72 байт.
var ErrPasswordTooLong = errors.New("пароль длиннее 72 байт")

// ValidatePassword проверяет ограничения bcrypt до хеширования,
// чтобы вызывающий код мог вернуть клиенту ошибку валидации, а не 500.
func ValidatePassword(password string) error {
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}
