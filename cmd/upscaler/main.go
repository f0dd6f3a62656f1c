package main

import (
	// Импорт стандартных библиотек
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	// Импорт внутренних пакетов проекта
	"imageupscaler/internal/app"
	"imageupscaler/internal/config"
)

// main - точка входа: конфигурация, сборка приложения, HTTP-сервер с корректной остановкой.
func main() {
	// --- 1. Конфигурация ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 2. Инициализация зависимостей ---
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Ошибка инициализации приложения: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("Ошибка при закрытии БД: %v", err)
		}
	}()

	// --- 3. Запуск сервера ---
	srv := &http.Server{
		Addr:              ":" + cfg.ListenPort,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Сервер запускается на порту %s...", cfg.ListenPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Получен сигнал остановки, завершаем работу...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка при остановке сервера: %v", err)
	}
	log.Println("Сервер остановлен.")
}
