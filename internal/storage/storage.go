// Package storage хранит файлы загрузок: исходники (originals) и результаты обработки (processed).
// Ключ файла одинаков в обеих областях - это сгенерированное имя (токен + расширение).
package storage

import (
	// Стандартные библиотеки
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Area - область хранилища.
type Area string

const (
	Originals Area = "originals"
	Processed Area = "processed"
)

var (
	// ErrNotExist - файла с таким ключом в области нет.
	ErrNotExist = errors.New("файл не найден в хранилище")
	// ErrInvalidKey - ключ не является простым именем файла.
	ErrInvalidKey = errors.New("недопустимый ключ файла")
	// ErrInvalidArea - неизвестная область хранилища.
	ErrInvalidArea = errors.New("неизвестная область хранилища")
)

// Blob - открытый файл из хранилища. Вызывающий обязан закрыть его.
type Blob struct {
	io.ReadCloser
	Size int64 // -1, если размер неизвестен
}

// BlobStore - хранилище файлов загрузок.
type BlobStore interface {
	// Put записывает содержимое r под ключом key и возвращает число записанных байт.
	Put(ctx context.Context, area Area, key string, r io.Reader) (int64, error)
	// Open открывает файл. Если файла нет - ошибка оборачивает ErrNotExist.
	Open(ctx context.Context, area Area, key string) (*Blob, error)
	// Remove удаляет файл. Отсутствие файла ошибкой не считается.
	Remove(ctx context.Context, area Area, key string) error
}

// ValidateKey проверяет, что ключ - простое имя файла без путей.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") ||
		strings.ContainsRune(key, 0) {
		return ErrInvalidKey
	}
	return nil
}

// ContentTypeFor определяет Content-Type по расширению ключа.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func validateArea(area Area) error {
	switch area {
	case Originals, Processed:
		return nil
	}
	return ErrInvalidArea
}
