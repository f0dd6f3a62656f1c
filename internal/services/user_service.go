package services

import (
	// Стандартные библиотеки
	"context"
	"errors"
	"log"

	// Внутренние пакеты
	"imageupscaler/internal/auth"
	"imageupscaler/internal/database"
	"imageupscaler/internal/models"
)

// UserStore - операции с пользователями, которые нужны UserService.
type UserStore interface {
	UserExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserService - регистрация и вход.
type UserService struct {
	users UserStore
}

// NewUserService создает сервис поверх хранилища пользователей.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// Register создает пользователя с bcrypt-хешем пароля.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	// Проверка занятости имени или email
	exists, err := s.users.UserExists(ctx, username, email)
	if err != nil {
		log.Printf("Ошибка при регистрации %s: %v", username, err)
		return nil, newError(ErrInternal, "Registration failed", err)
	}
	if exists {
		return nil, newError(ErrConflict, "User already exists", nil)
	}

	// bcrypt принимает не больше 72 байт
	if err := auth.ValidatePassword(password); err != nil {
		return nil, newError(ErrValidation, "Password is too long", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("Ошибка при хешировании пароля для %s: %v", username, err)
		return nil, newError(ErrInternal, "Registration failed", err)
	}

	user := &models.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Гонка двух регистраций с одинаковыми данными
		if errors.Is(err, database.ErrDuplicate) {
			return nil, newError(ErrConflict, "User already exists", err)
		}
		log.Printf("Ошибка при создании пользователя %s: %v", username, err)
		return nil, newError(ErrInternal, "Registration failed", err)
	}
	return user, nil
}

// Authenticate проверяет email и пароль.
// Неизвестный email и неверный пароль неразличимы для клиента.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		log.Printf("Неудачная попытка входа: email '%s' не найден", email)
		return nil, newError(ErrUnauthorized, "Invalid email or password", nil)
	}
	if err != nil {
		log.Printf("Ошибка при поиске пользователя '%s': %v", email, err)
		return nil, newError(ErrInternal, "Login failed", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		log.Printf("Неудачная попытка входа: неверный пароль для '%s'", email)
		return nil, newError(ErrUnauthorized, "Invalid email or password", nil)
	}
	log.Printf("Пользователь %s (ID: %d) вошел в систему", user.Username, user.ID)
	return user, nil
}
