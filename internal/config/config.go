package config

import (
	// Стандартные библиотеки
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	// Сторонние библиотеки
	"github.com/joho/godotenv"
)

// Значения по умолчанию.
const (
	DefaultMaxUploadBytes int64 = 16 << 20 // 16 МБ
	DefaultMaxImagePixels int64 = 16 << 20 // около 4096x4096
	DefaultSessionName          = "session"
)

// Config - вся конфигурация сервиса. Собирается один раз в main и передается дальше явно.
type Config struct {
	ListenPort string

	CookieSecret string
	CookieSecure bool
	SessionName  string

	DBDriver    string // sqlite | postgres
	DBPath      string
	DatabaseURL string

	UploadPath  string // корень локального хранилища (originals/ и processed/ внутри)
	StorageType string // local | s3
	S3          S3Config

	FrontendDir string
	CORSOrigins []string

	MaxUploadBytes       int64
	MaxImagePixels       int64 // предел ширина*высота исходника, проверяется до декодирования
	VerifyContentType    bool  // дополнительно проверять сигнатуру файла, а не только расширение
	OwnerScopedRetrieval bool  // view/download только для владельца
	GinMode              string
}

// S3Config - параметры S3-совместимого хранилища (AWS, MinIO).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // необязательный, для MinIO и подобных
	AccessKey string
	SecretKey string
	Prefix    string
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения")
	}

	maxUpload, err := getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	maxPixels, err := getEnvInt64("MAX_IMAGE_PIXELS", DefaultMaxImagePixels)
	if err != nil {
		return nil, err
	}
	cookieSecure, err := getEnvBool("COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}
	verify, err := getEnvBool("VERIFY_CONTENT_TYPE", true)
	if err != nil {
		return nil, err
	}
	scoped, err := getEnvBool("OWNER_SCOPED_RETRIEVAL", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenPort:   getEnv("LISTEN_PORT", "8080"),
		CookieSecret: getEnv("COOKIE_SECRET", "fallback-secret-change-in-production"),
		CookieSecure: cookieSecure,
		SessionName:  getEnv("SESSION_NAME", DefaultSessionName),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:      getEnv("DB_PATH", "data/app.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		UploadPath:  getEnv("UPLOAD_PATH", "uploads"),
		StorageType: strings.ToLower(getEnv("STORAGE_TYPE", "local")),
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    os.Getenv("S3_PREFIX"),
		},

		FrontendDir: getEnv("FRONTEND_DIR", "dist"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		MaxUploadBytes:       maxUpload,
		MaxImagePixels:       maxPixels,
		VerifyContentType:    verify,
		OwnerScopedRetrieval: scoped,
		GinMode:              getEnv("GIN_MODE", "release"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Printf("Конфигурация загружена: порт %s, БД %s, хранилище %s", cfg.ListenPort, cfg.DBDriver, cfg.StorageType)
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH не задан")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL обязателен для DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("неизвестный DB_DRIVER: %q", c.DBDriver)
	}

	switch c.StorageType {
	case "local":
		if c.UploadPath == "" {
			return errors.New("UPLOAD_PATH не задан")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("S3_BUCKET не задан")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return errors.New("S3_ACCESS_KEY и S3_SECRET_KEY задаются только вместе")
		}
	default:
		return fmt.Errorf("неизвестный STORAGE_TYPE: %q", c.StorageType)
	}

	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("неизвестный GIN_MODE: %q", c.GinMode)
	}

	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES должен быть положительным")
	}
	if c.MaxImagePixels <= 0 {
		return errors.New("MAX_IMAGE_PIXELS должен быть положительным")
	}
	return nil
}

// IsS3Enabled - включено ли S3-хранилище.
func (c *Config) IsS3Enabled() bool {
	return c.StorageType == "s3"
}

// getEnv получает значение переменной окружения по ключу.
// Если переменная не установлена, возвращает fallback и логирует это.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	log.Printf("Переменная окружения %s не установлена, используется значение по умолчанию: %s", key, fallback)
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("некорректное значение %s=%q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное значение %s=%q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
