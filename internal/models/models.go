package models

import (
	// Стандартные библиотеки
	"strings"
	"time"
)

// User представляет пользователя в системе.
// Поля структуры соответствуют столбцам таблицы 'users'.
// `json:"-"` означает, что поле не попадает в JSON-ответы.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:80;uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"size:120;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:128;not null"` // bcrypt-хеш, клиенту не передается
	CreatedAt    time.Time `json:"created_at"`
}

// TableName фиксирует имя таблицы, чтобы оно не зависело от правил gorm.
func (User) TableName() string { return "users" }

// FileStatus - статус жизненного цикла загрузки.
type FileStatus string

const (
	StatusPending   FileStatus = "PENDING"   // запись создана, обработка еще не завершена
	StatusCompleted FileStatus = "COMPLETED" // обработанный файл лежит в processed
	StatusFailed    FileStatus = "FAILED"    // обработка завершилась ошибкой, повтора нет
)

// Lower возвращает статус в нижнем регистре (формат ответа на загрузку).
func (s FileStatus) Lower() string { return strings.ToLower(string(s)) }

// FileHistory - запись об одной загрузке.
// ProcessedFilename = PublicID + Extension и служит ключом файла в обеих областях хранилища
// (originals и processed). Наружу отдается только PublicID.
type FileHistory struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	OriginalFilename  string     `json:"original_filename" gorm:"size:255;not null"` // очищенное имя от клиента, только для отображения
	ProcessedFilename string     `json:"-" gorm:"size:255;not null;uniqueIndex"`
	PublicID          string     `json:"unique_id" gorm:"size:64;not null;uniqueIndex"`
	Extension         string     `json:"-" gorm:"size:16;not null"`
	Status            FileStatus `json:"status" gorm:"size:50;not null;default:PENDING;index"`
	UploadedAt        time.Time  `json:"uploaded_at" gorm:"autoCreateTime;index"`
	UserID            uint       `json:"user_id" gorm:"not null;index"`
	User              *User      `json:"-" gorm:"constraint:OnDelete:CASCADE"` // только для внешнего ключа, не заполняется
}

func (FileHistory) TableName() string { return "file_history" }

// IsCompleted сообщает, можно ли отдавать обработанный файл.
func (f *FileHistory) IsCompleted() bool {
	return f.Status == StatusCompleted
}
