package storage

import (
	// Стандартные библиотеки
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// LocalStore хранит файлы в двух директориях на диске: <root>/originals и <root>/processed.
type LocalStore struct {
	root string
}

// NewLocalStore проверяет/создает директории областей и возвращает хранилище.
func NewLocalStore(root string) (*LocalStore, error) {
	for _, area := range []Area{Originals, Processed} {
		if err := EnsureDir(filepath.Join(root, string(area))); err != nil {
			return nil, err
		}
	}
	return &LocalStore{root: root}, nil
}

// Dir возвращает путь к директории области.
func (s *LocalStore) Dir(area Area) string {
	return filepath.Join(s.root, string(area))
}

func (s *LocalStore) path(area Area, key string) (string, error) {
	if err := validateArea(area); err != nil {
		return "", err
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, string(area), key), nil
}

func (s *LocalStore) Put(_ context.Context, area Area, key string, r io.Reader) (int64, error) {
	fullPath, err := s.path(area, key)
	if err != nil {
		return 0, err
	}

	outFile, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("не удалось создать файл %s: %w", fullPath, err)
	}

	n, err := io.Copy(outFile, r)
	if closeErr := outFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// Недописанный файл не оставляем
		if rmErr := os.Remove(fullPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Printf("ПРЕДУПРЕЖДЕНИЕ: не удалось удалить недописанный файл %s: %v", fullPath, rmErr)
		}
		return 0, fmt.Errorf("не удалось записать файл %s: %w", fullPath, err)
	}
	return n, nil
}

func (s *LocalStore) Open(_ context.Context, area Area, key string) (*Blob, error) {
	fullPath, err := s.path(area, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", area, key, ErrNotExist)
		}
		return nil, fmt.Errorf("не удалось открыть файл %s: %w", fullPath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("не удалось получить информацию о файле %s: %w", fullPath, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s/%s: %w", area, key, ErrNotExist)
	}
	return &Blob{ReadCloser: f, Size: info.Size()}, nil
}

func (s *LocalStore) Remove(_ context.Context, area Area, key string) error {
	fullPath, err := s.path(area, key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("не удалось удалить файл %s: %w", fullPath, err)
	}
	return nil
}

// EnsureDir проверяет существование директории и создает ее при необходимости.
// Пустой путь, корень и "." запрещены.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("путь к директории не может быть пустым")
	}
	if dirPath == "/" || dirPath == "." {
		return fmt.Errorf("небезопасный путь для директории: %s", dirPath)
	}

	info, err := os.Stat(dirPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("Папка %s не найдена, создаем...", dirPath)
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("не удалось создать папку %s: %w", dirPath, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка при проверке папки %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("путь %s существует, но не является директорией", dirPath)
	}
	return nil
}
