package services

import (
	// Стандартные библиотеки
	"context"
	"errors"
	"fmt"
	"log"

	// Внутренние пакеты
	"imageupscaler/internal/database"
	"imageupscaler/internal/models"
	"imageupscaler/internal/storage"
)

// HistoryDateLayout - формат даты в истории загрузок.
const HistoryDateLayout = "2006-01-02 15:04"

// FileStore - операции с записями о файлах, которые нужны FileService.
type FileStore interface {
	ListFilesByUser(ctx context.Context, userID uint) ([]models.FileHistory, error)
	GetFileByPublicID(ctx context.Context, publicID string) (*models.FileHistory, error)
	GetFileForOwner(ctx context.Context, id, userID uint) (*models.FileHistory, error)
	DeleteFileRecord(ctx context.Context, id uint) error
}

// HistoryEntry - элемент истории загрузок в ответе API.
type HistoryEntry struct {
	ID               uint              `json:"id"`
	OriginalFilename string            `json:"original_filename"`
	UniqueID         string            `json:"unique_id"`
	Status           models.FileStatus `json:"status"`
	Date             string            `json:"date"`
}

// FileContent - открытый файл для отдачи клиенту. Вызывающий закрывает Body.
type FileContent struct {
	Body        *storage.Blob
	ContentType string
	Filename    string
}

// FileService - история, просмотр, скачивание и удаление загрузок.
type FileService struct {
	files FileStore
	blobs storage.BlobStore

	// OwnerScoped ограничивает просмотр и скачивание владельцем файла.
	OwnerScoped bool
}

// NewFileService - по умолчанию файлы доступны по ссылке любому.
func NewFileService(files FileStore, blobs storage.BlobStore) *FileService {
	return &FileService{files: files, blobs: blobs}
}

// History возвращает загрузки пользователя, новые первыми.
func (s *FileService) History(ctx context.Context, ownerID uint) ([]HistoryEntry, error) {
	files, err := s.files.ListFilesByUser(ctx, ownerID)
	if err != nil {
		log.Printf("Ошибка получения истории для UserID %d: %v", ownerID, err)
		return nil, newError(ErrInternal, "Could not fetch history", err)
	}

	// Пустая история - [] в JSON, а не null
	entries := make([]HistoryEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, HistoryEntry{
			ID:               f.ID,
			OriginalFilename: f.OriginalFilename,
			UniqueID:         f.PublicID,
			Status:           f.Status,
			Date:             f.UploadedAt.UTC().Format(HistoryDateLayout),
		})
	}
	return entries, nil
}

// View отдает исходник inline независимо от статуса обработки.
// viewer == nil - запрос без сессии.
func (s *FileService) View(ctx context.Context, identifier string, viewer *uint) (*FileContent, error) {
	rec, err := s.resolve(ctx, identifier, viewer)
	if err != nil {
		return nil, err
	}
	body, err := s.open(ctx, storage.Originals, rec)
	if err != nil {
		return nil, err
	}
	return &FileContent{
		Body:        body,
		ContentType: storage.ContentTypeFor(rec.ProcessedFilename),
		Filename:    rec.OriginalFilename,
	}, nil
}

// Download отдает обработанный файл. Пока обработка не завершена успешно - Conflict.
func (s *FileService) Download(ctx context.Context, identifier string, viewer *uint) (*FileContent, error) {
	rec, err := s.resolve(ctx, identifier, viewer)
	if err != nil {
		return nil, err
	}
	// PENDING и FAILED скачать нельзя
	if !rec.IsCompleted() {
		return nil, newError(ErrConflict, fmt.Sprintf("File is still %s.", rec.Status.Lower()), nil)
	}
	body, err := s.open(ctx, storage.Processed, rec)
	if err != nil {
		return nil, err
	}
	return &FileContent{
		Body:        body,
		ContentType: storage.ContentTypeFor(rec.ProcessedFilename),
		Filename:    "upscaled_" + rec.OriginalFilename,
	}, nil
}

// Delete удаляет оба файла и запись. Чужая или несуществующая запись - NotFound.
func (s *FileService) Delete(ctx context.Context, ownerID, id uint) error {
	rec, err := s.files.GetFileForOwner(ctx, id, ownerID)
	if errors.Is(err, database.ErrNotFound) {
		return newError(ErrNotFound, "File not found or access denied", nil)
	}
	if err != nil {
		log.Printf("Ошибка поиска файла ID %d для удаления (UserID %d): %v", id, ownerID, err)
		return newError(ErrInternal, "Error deleting file", err)
	}

	// Файлы удаляем без гарантий: отсутствующий или недоступный файл не мешает удалить запись
	for _, area := range []storage.Area{storage.Originals, storage.Processed} {
		if err := s.blobs.Remove(ctx, area, rec.ProcessedFilename); err != nil {
			log.Printf("ПРЕДУПРЕЖДЕНИЕ: не удалось удалить %s/%s: %v", area, rec.ProcessedFilename, err)
		}
	}

	if err := s.files.DeleteFileRecord(ctx, rec.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return newError(ErrNotFound, "File not found or access denied", nil)
		}
		log.Printf("Ошибка удаления записи о файле ID %d: %v", rec.ID, err)
		return newError(ErrInternal, "Error deleting file", err)
	}
	log.Printf("Файл ID %d (%s) удален пользователем %d", rec.ID, rec.PublicID, ownerID)
	return nil
}

// resolve находит запись по публичному идентификатору с учетом OwnerScoped.
func (s *FileService) resolve(ctx context.Context, identifier string, viewer *uint) (*models.FileHistory, error) {
	if s.OwnerScoped && viewer == nil {
		return nil, newError(ErrUnauthorized, "Authentication required", nil)
	}
	// Строка не похожа на идентификатор - в БД не ходим
	if !ValidIdentifier(identifier) {
		return nil, newError(ErrNotFound, "File not found.", nil)
	}

	rec, err := s.files.GetFileByPublicID(ctx, identifier)
	if errors.Is(err, database.ErrNotFound) {
		return nil, newError(ErrNotFound, "File not found.", nil)
	}
	if err != nil {
		log.Printf("Ошибка поиска файла %s: %v", identifier, err)
		return nil, newError(ErrInternal, "Error loading file", err)
	}

	// Чужой файл неотличим от несуществующего
	if s.OwnerScoped && rec.UserID != *viewer {
		return nil, newError(ErrNotFound, "File not found.", nil)
	}
	return rec, nil
}

// open открывает файл записи в области area. Отсутствие файла на диске - NotFound.
func (s *FileService) open(ctx context.Context, area storage.Area, rec *models.FileHistory) (*storage.Blob, error) {
	body, err := s.blobs.Open(ctx, area, rec.ProcessedFilename)
	if errors.Is(err, storage.ErrNotExist) {
		log.Printf("Запись ID %d есть, но файл %s/%s отсутствует", rec.ID, area, rec.ProcessedFilename)
		return nil, newError(ErrNotFound, "File not found.", err)
	}
	if err != nil {
		log.Printf("Ошибка чтения %s/%s: %v", area, rec.ProcessedFilename, err)
		return nil, newError(ErrInternal, "Error loading file", err)
	}
	return body, nil
}
