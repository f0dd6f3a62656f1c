package middleware

import (
	// Стандартные библиотеки
	"log"
	"net/http"
	"time"

	// Сторонние библиотеки
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Ключи сессии и контекста Gin.
const (
	SessionUserID   = "userID"
	SessionUsername = "username"
	ContextUserID   = "userID"
)

// AuthRequired - это Gin middleware, которое пропускает только аутентифицированных пользователей.
// API отвечает JSON 401 вместо редиректа на страницу входа.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := SessionUser(c)
		if !ok {
			log.Printf("Доступ запрещен (не аутентифицирован) к %s с IP %s", c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}

		// Последующие обработчики берут ID через CurrentUserID
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// SessionUser читает ID пользователя из сессии.
// Значение неверного типа считается повреждением: сессия очищается.
func SessionUser(c *gin.Context) (uint, bool) {
	session := sessions.Default(c)
	raw := session.Get(SessionUserID)
	if raw == nil {
		return 0, false
	}

	userID, ok := raw.(uint)
	if !ok {
		log.Printf("ОШИБКА ТИПА ДАННЫХ СЕССИИ: Некорректный тип userID (%T) для IP %s. Сессия будет очищена.", raw, c.ClientIP())
		ClearSession(c)
		return 0, false
	}
	return userID, true
}

// ClearSession удаляет данные пользователя и просит браузер удалить cookie.
func ClearSession(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		log.Printf("Ошибка сохранения сессии при очистке: %v", err)
	}
}

// CurrentUserID возвращает ID, положенный AuthRequired в контекст.
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// RequestLogger пишет в лог метод, IP, путь, статус и время обработки каждого запроса.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Printf("[%s] %s %s %d %v",
			c.Request.Method,
			c.ClientIP(),
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
