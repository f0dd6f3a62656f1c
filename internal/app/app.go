// Package app собирает сервис из конфигурации: БД, хранилище файлов, сервисы и роутер.
package app

import (
	// Стандартные библиотеки
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	// Внутренние пакеты
	"imageupscaler/internal/config"
	"imageupscaler/internal/database"
	"imageupscaler/internal/handlers"
	"imageupscaler/internal/middleware"
	"imageupscaler/internal/services"
	"imageupscaler/internal/storage"

	// Сторонние библиотеки
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// App - собранное приложение. Создается один раз в main, глобального состояния нет.
type App struct {
	Config *config.Config
	Store  *database.Store
	Blobs  storage.BlobStore

	Users   *services.UserService
	Uploads *services.UploadService
	Files   *services.FileService
}

// New подключается к БД и хранилищу и связывает сервисы.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := database.Open(database.Options{
		Driver:      cfg.DBDriver,
		Path:        cfg.DBPath,
		DatabaseURL: cfg.DatabaseURL,
		LogSQL:      cfg.GinMode == gin.DebugMode,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации базы данных: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ошибка инициализации хранилища файлов: %w", err)
	}

	upscaler := services.NewLanczosUpscaler(blobs)
	upscaler.MaxPixels = cfg.MaxImagePixels

	return NewWithDeps(cfg, store, blobs, upscaler), nil
}

// NewWithDeps собирает приложение из готовых зависимостей (используется в тестах).
func NewWithDeps(cfg *config.Config, store *database.Store, blobs storage.BlobStore, transformer services.Transformer) *App {
	uploads := services.NewUploadService(store, blobs, transformer)
	uploads.VerifyContent = cfg.VerifyContentType

	files := services.NewFileService(store, blobs)
	files.OwnerScoped = cfg.OwnerScopedRetrieval

	return &App{
		Config:  cfg,
		Store:   store,
		Blobs:   blobs,
		Users:   services.NewUserService(store),
		Uploads: uploads,
		Files:   files,
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.IsS3Enabled() {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	}
	return storage.NewLocalStore(cfg.UploadPath)
}

// Router настраивает middleware и маршруты.
func (a *App) Router() *gin.Engine {
	cfg := a.Config
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// За обратным прокси (Nginx) доверяем заголовкам X-Forwarded-*
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Printf("Ошибка установки доверенных прокси: %v", err)
	}
	// Части формы больше этого размера уходят во временные файлы
	router.MaxMultipartMemory = 8 << 20

	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	store := cookie.NewStore([]byte(cfg.CookieSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(cfg.SessionName, store))

	h := &handlers.Handler{
		Users:          a.Users,
		Uploads:        a.Uploads,
		Files:          a.Files,
		MaxUploadBytes: cfg.MaxUploadBytes,
		FrontendDir:    cfg.FrontendDir,
		BackendInfo:    fmt.Sprintf("%s database and %s storage", cfg.DBDriver, cfg.StorageType),
	}

	api := router.Group("/api")
	{
		api.GET("/data", h.Data)
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.GET("/check-auth", h.CheckAuth)
		api.GET("/download/:identifier", h.Download)
		api.GET("/view/:identifier", h.View)

		private := api.Group("/")
		private.Use(middleware.AuthRequired())
		{
			private.POST("/logout", h.Logout)
			private.POST("/upload", h.Upload)
			private.GET("/history", h.History)
			private.DELETE("/history/:id", h.DeleteHistory)
		}
	}

	router.NoRoute(h.Frontend)
	return router
}

// corsConfig разрешает запросы с cookie от фронтенда. "*" означает любой origin.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	switch {
	case len(origins) == 0:
		cfg.AllowOriginFunc = func(string) bool { return false }
	case slices.Contains(origins, "*"):
		// С credentials браузер не принимает "*", поэтому отражаем origin запроса
		cfg.AllowOriginFunc = func(string) bool { return true }
	default:
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Close освобождает ресурсы приложения.
func (a *App) Close() error {
	return a.Store.Close()
}
