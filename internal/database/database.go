package database

import (
	// Стандартные библиотеки
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	// Внутренние пакеты
	"imageupscaler/internal/models"
	"imageupscaler/internal/storage"

	// Сторонние библиотеки
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// Драйвер SQLite на чистом Go: регистрирует "sqlite" в database/sql.
	_ "modernc.org/sqlite"
)

// ErrNotFound - запись не найдена.
var ErrNotFound = errors.New("запись не найдена")

// ErrDuplicate - нарушение ограничения уникальности.
var ErrDuplicate = errors.New("запись уже существует")

// Options - параметры подключения.
type Options struct {
	Driver      string // sqlite | postgres
	Path        string // файл SQLite
	DatabaseURL string // DSN Postgres
	LogSQL      bool
}

// Store - доступ к таблицам users и file_history.
// Создается один раз при старте и передается в сервисы явно.
type Store struct {
	db *gorm.DB
}

// Open подключается к БД, настраивает пул и создает таблицы.
func Open(opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = "sqlite"
	}
	dialector, err := newDialector(opts)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if opts.LogSQL {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии БД (%s): %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	if opts.Driver == "sqlite" {
		// Для SQLite - одно соединение: параллельная запись в один файл все равно сериализуется
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения с БД: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.FileHistory{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ошибка при создании таблиц: %w", err)
	}
	log.Printf("Подключились к БД (%s), таблицы проверены/созданы.", opts.Driver)
	return &Store{db: db}, nil
}

// newDialector выбирает диалект gorm по драйверу.
func newDialector(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case "sqlite":
		if dir := filepath.Dir(opts.Path); dir != "." && dir != "/" {
			if err := storage.EnsureDir(dir); err != nil {
				return nil, err
			}
		}
		// WAL, таймаут ожидания блокировки и внешние ключи
		dsn := opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("ошибка при открытии %s: %w", opts.Path, err)
		}
		return sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: conn}), nil
	case "postgres":
		return postgres.Open(opts.DatabaseURL), nil
	default:
		return nil, fmt.Errorf("неподдерживаемый драйвер БД: %q", opts.Driver)
	}
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation распознает нарушение уникальности.
// modernc-драйвер не переводится gorm в ErrDuplicatedKey, поэтому проверяем и текст.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser создает пользователя. Дубликат имени или email - ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("пользователь '%s' / '%s': %w", user.Username, user.Email, ErrDuplicate)
		}
		return fmt.Errorf("ошибка при создании пользователя %s: %w", user.Username, err)
	}
	log.Printf("Создан пользователь: %s (ID: %d)", user.Username, user.ID)
	return nil
}

// UserExists проверяет, занято ли имя пользователя или email.
func (s *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ошибка проверки существования пользователя %s: %w", username, err)
	}
	return count > 0, nil
}

// GetUserByEmail ищет пользователя по email. Если не найден - ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.firstUser(ctx, "email = ?", email)
}

// GetUserByID ищет пользователя по ID. Если не найден - ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.firstUser(ctx, "id = ?", id)
}

func (s *Store) firstUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователя (%s): %w", query, err)
	}
	return &user, nil
}

// CreateFileRecord сохраняет запись о загрузке (статус PENDING) и фиксирует ее сразу.
func (s *Store) CreateFileRecord(ctx context.Context, rec *models.FileHistory) error {
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			log.Printf("КРИТИЧЕСКАЯ ОШИБКА: дубликат ключа файла '%s' для UserID %d", rec.ProcessedFilename, rec.UserID)
			return fmt.Errorf("ключ файла %s: %w", rec.ProcessedFilename, ErrDuplicate)
		}
		return fmt.Errorf("ошибка создания записи о файле %s: %w", rec.ProcessedFilename, err)
	}
	log.Printf("Запись о файле создана: ID=%d, PublicID=%s, UserID=%d", rec.ID, rec.PublicID, rec.UserID)
	return nil
}

// UpdateFileStatus меняет статус записи.
func (s *Store) UpdateFileStatus(ctx context.Context, id uint, status models.FileStatus) error {
	res := s.db.WithContext(ctx).Model(&models.FileHistory{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("ошибка обновления статуса файла ID %d на '%s': %w", id, status, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("файл ID %d для смены статуса: %w", id, ErrNotFound)
	}
	return nil
}

// ListFilesByUser возвращает файлы пользователя, новые первыми.
func (s *Store) ListFilesByUser(ctx context.Context, userID uint) ([]models.FileHistory, error) {
	var files []models.FileHistory
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").Order("id DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории UserID %d: %w", userID, err)
	}
	return files, nil
}

// GetFileByPublicID ищет запись по публичному идентификатору (точное совпадение).
func (s *Store) GetFileByPublicID(ctx context.Context, publicID string) (*models.FileHistory, error) {
	var rec models.FileHistory
	err := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файла %s: %w", publicID, err)
	}
	return &rec, nil
}

// GetFileForOwner ищет запись по ID с проверкой владельца.
func (s *Store) GetFileForOwner(ctx context.Context, id, userID uint) (*models.FileHistory, error) {
	var rec models.FileHistory
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файла ID %d (UserID %d): %w", id, userID, err)
	}
	return &rec, nil
}

// DeleteFileRecord удаляет запись. Если удалять нечего - ErrNotFound.
func (s *Store) DeleteFileRecord(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.FileHistory{}, id)
	if res.Error != nil {
		return fmt.Errorf("ошибка удаления записи о файле ID %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("файл ID %d: %w", id, ErrNotFound)
	}
	return nil
}
