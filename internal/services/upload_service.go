package services

import (
	// Стандартные библиотеки
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	// Внутренние пакеты
	"imageupscaler/internal/models"
	"imageupscaler/internal/storage"

	// Сторонние библиотеки
	"github.com/gabriel-vasile/mimetype"
)

// Сообщения ответа на загрузку.
const (
	msgProcessed      = "File uploaded and processed successfully."
	msgProcessingFail = "File uploaded, but processing failed."
)

// sniffLen - сколько первых байт смотрим для определения типа (как http.DetectContentType).
const sniffLen = 512

// allowedContentTypes - MIME-типы, которые пропускает проверка содержимого.
var allowedContentTypes = []string{"image/png", "image/jpeg"}

// UploadRecords - то, что нужно оркестратору от хранилища записей.
type UploadRecords interface {
	CreateFileRecord(ctx context.Context, rec *models.FileHistory) error
	UpdateFileStatus(ctx context.Context, id uint, status models.FileStatus) error
}

// UploadResult - ответ на успешно принятую загрузку.
type UploadResult struct {
	ID       uint
	PublicID string
	Status   models.FileStatus
	Message  string
}

// UploadService ведет загрузку от сырого файла до статуса COMPLETED/FAILED.
type UploadService struct {
	records     UploadRecords
	blobs       storage.BlobStore
	transformer Transformer

	// VerifyContent включает проверку сигнатуры файла в дополнение к проверке расширения.
	VerifyContent bool
	// NewID генерирует публичный идентификатор; подменяется в тестах.
	NewID func() string
}

// NewUploadService собирает оркестратор из зависимостей.
func NewUploadService(records UploadRecords, blobs storage.BlobStore, transformer Transformer) *UploadService {
	return &UploadService{
		records:       records,
		blobs:         blobs,
		transformer:   transformer,
		VerifyContent: true,
		NewID:         NewIdentifier,
	}
}

// Upload принимает файл пользователя ownerID.
// content == nil означает, что в запросе нет части с файлом.
func (s *UploadService) Upload(ctx context.Context, ownerID uint, filename string, content io.Reader) (*UploadResult, error) {
	// 1. Наличие файла
	if content == nil {
		return nil, newError(ErrValidation, "No file part", nil)
	}
	if filename == "" {
		return nil, newError(ErrValidation, "No selected file", nil)
	}

	// 2. Расширение из белого списка (только по имени)
	if !AllowedFile(filename) {
		return nil, newError(ErrValidation, "File type not allowed", nil)
	}

	// 2a. Сигнатура содержимого
	if s.VerifyContent {
		br := bufio.NewReaderSize(content, sniffLen)
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, UploadFailed(err)
		}
		if mt := mimetype.Detect(head); !mimetype.EqualsAny(mt.String(), allowedContentTypes...) {
			log.Printf("Отклонен файл '%s' (UserID %d): содержимое %s", filename, ownerID, mt.String())
			return nil, newError(ErrValidation, "File type not allowed", nil)
		}
		// Просмотренные байты остаются в буфере и уйдут в хранилище
		content = br
	}

	// 3. Очищенное имя - только для отображения
	displayName := SecureFilename(filename)

	// 4. Ключ хранения: токен + расширение
	publicID := s.NewID()
	ext := "." + FileExtension(filename)
	key := publicID + ext

	// 5. Исходник на диск. Ошибка - записи в БД не будет.
	if _, err := s.blobs.Put(ctx, storage.Originals, key, content); err != nil {
		log.Printf("Ошибка сохранения исходника '%s' (UserID %d): %v", filename, ownerID, err)
		return nil, UploadFailed(err)
	}

	// 6. Запись со статусом PENDING фиксируется до обработки
	rec := &models.FileHistory{
		OriginalFilename:  displayName,
		ProcessedFilename: key,
		PublicID:          publicID,
		Extension:         ext,
		Status:            models.StatusPending,
		UserID:            ownerID,
	}
	if err := s.records.CreateFileRecord(ctx, rec); err != nil {
		log.Printf("КРИТИЧЕСКАЯ ОШИБКА: не удалось сохранить запись для '%s' (UserID %d): %v", filename, ownerID, err)
		s.cleanupOriginal(key)
		return nil, UploadFailed(err)
	}

	// 7. Обработка: синхронно, отмена клиентом на нее не влияет
	status, message := models.StatusCompleted, msgProcessed
	if err := s.runTransform(context.WithoutCancel(ctx), key); err != nil {
		log.Printf("Обработка файла %s (ID %d) завершилась ошибкой: %v", key, rec.ID, err)
		status, message = models.StatusFailed, msgProcessingFail
	}
	if err := s.records.UpdateFileStatus(context.WithoutCancel(ctx), rec.ID, status); err != nil {
		log.Printf("КРИТИЧЕСКАЯ ОШИБКА: не удалось записать статус %s для файла ID %d: %v", status, rec.ID, err)
		return nil, UploadFailed(err)
	}
	// Итоговый статус - в ответ
	rec.Status = status

	log.Printf("Файл '%s' (ID: %d, PublicID: %s) от UserID %d: %s", displayName, rec.ID, publicID, ownerID, status)
	return &UploadResult{ID: rec.ID, PublicID: publicID, Status: status, Message: message}, nil
}

// runTransform вызывает обработчик и превращает панику в ошибку.
func (s *UploadService) runTransform(ctx context.Context, key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника в обработчике: %v", r)
		}
	}()
	return s.transformer.Transform(ctx, key)
}

// UploadFailed - внутренняя ошибка загрузки. Превышение лимита размера тела
// сообщается отдельным текстом.
func UploadFailed(err error) *Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return newError(ErrInternal, "Upload failed: file exceeds the "+formatLimit(tooLarge.Limit)+" limit", err)
	}
	return newError(ErrInternal, "Upload failed", err)
}

// formatLimit печатает лимит в MiB, если он делится нацело.
func formatLimit(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MiB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

// cleanupOriginal - удаление исходника после ошибки, без гарантий.
func (s *UploadService) cleanupOriginal(key string) {
	if err := s.blobs.Remove(context.Background(), storage.Originals, key); err != nil {
		log.Printf("ПРЕДУПРЕЖДЕНИЕ: не удалось удалить исходник %s после ошибки: %v", key, err)
	}
}
