package handlers

import (
	// Стандартные библиотеки
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	// Внутренние пакеты
	"imageupscaler/internal/middleware"
	"imageupscaler/internal/services"

	// Сторонние библиотеки
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Handler - HTTP-обработчики API. Зависимости передаются явно при сборке приложения.
type Handler struct {
	Users   *services.UserService
	Uploads *services.UploadService
	Files   *services.FileService

	MaxUploadBytes int64
	FrontendDir    string
	BackendInfo    string // описание конфигурации для /api/data
}

// registerRequest - тело POST /api/register.
type registerRequest struct {
	Username string `json:"username" binding:"required,max=80"`
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required"`
}

// loginRequest - тело POST /api/login.
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Data - простой эндпоинт проверки работоспособности.
func (h *Handler) Data(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Hello from the image upscaler backend!",
		"status":  "API is working with " + h.BackendInfo,
	})
}

// Register создает пользователя.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}

	// required пропускает строку из пробелов, после обрезки она пустая
	username, email := strings.TrimSpace(req.Username), strings.TrimSpace(req.Email)
	if username == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing required fields"})
		return
	}

	user, err := h.Users.Register(c.Request.Context(), username, email, req.Password)
	if err != nil {
		respondError(c, err, "Registration failed")
		return
	}
	log.Printf("Пользователь %s (ID: %d) успешно зарегистрирован.", user.Username, user.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

// Login проверяет учетные данные и сохраняет пользователя в сессии.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondError(c, err, "Login failed")
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, user.ID)
	session.Set(middleware.SessionUsername, user.Username)
	if err := session.Save(); err != nil {
		log.Printf("Ошибка сохранения сессии после входа пользователя %s (ID: %d): %v", user.Username, user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "username": user.Username})
}

// Logout очищает сессию.
func (h *Handler) Logout(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	middleware.ClearSession(c)
	log.Printf("Пользователь (ID: %d) вышел из системы.", userID)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// CheckAuth сообщает фронтенду, есть ли активная сессия.
func (h *Handler) CheckAuth(c *gin.Context) {
	userID, ok := middleware.SessionUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	username, _ := sessions.Default(c).Get(middleware.SessionUsername).(string)
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "username": username, "id": userID})
}

// Upload принимает один файл из поля "file" и синхронно его обрабатывает.
func (h *Handler) Upload(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		log.Println("КРИТИЧЕСКАЯ ОШИБКА: userID не найден в контексте /api/upload.")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	var (
		filename string
		content  io.Reader
	)
	fileHeader, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		file, openErr := fileHeader.Open()
		if openErr != nil {
			respondError(c, services.UploadFailed(openErr), "Upload failed")
			return
		}
		defer file.Close()
		filename, content = fileHeader.Filename, file
	case errors.As(err, &tooLarge):
		log.Printf("Загрузка от UserID %d превысила лимит %d байт", userID, tooLarge.Limit)
		respondError(c, services.UploadFailed(err), "Upload failed")
		return
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// content остается nil: "No file part"
	default:
		log.Printf("Ошибка разбора multipart-формы от UserID %d: %v", userID, err)
	}

	res, err := h.Uploads.Upload(c.Request.Context(), userID, filename, content)
	if err != nil {
		respondError(c, err, "Upload failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  res.Message,
		"filename": res.PublicID,
		"status":   res.Status.Lower(),
	})
}

// History возвращает загрузки текущего пользователя.
func (h *Handler) History(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	entries, err := h.Files.History(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Could not fetch history")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// DeleteHistory удаляет запись о загрузке вместе с файлами.
func (h *Handler) DeleteHistory(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid file id"})
		return
	}

	if err := h.Files.Delete(c.Request.Context(), userID, uint(id)); err != nil {
		respondError(c, err, "Error deleting file")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

// Download отдает обработанный файл как вложение.
func (h *Handler) Download(c *gin.Context) {
	fc, err := h.Files.Download(c.Request.Context(), c.Param("identifier"), viewer(c))
	if err != nil {
		respondError(c, err, "Download error")
		return
	}
	serveContent(c, fc, "attachment")
}

// View отдает исходник для показа в браузере.
func (h *Handler) View(c *gin.Context) {
	fc, err := h.Files.View(c.Request.Context(), c.Param("identifier"), viewer(c))
	if err != nil {
		respondError(c, err, "Error loading preview.")
		return
	}
	serveContent(c, fc, "inline")
}

// Frontend отдает собранный SPA: существующий файл как есть, иначе index.html.
// Неизвестные пути /api/* получают JSON 404.
func (h *Handler) Frontend(c *gin.Context) {
	reqPath := c.Request.URL.Path
	if strings.HasPrefix(reqPath, "/api/") || reqPath == "/api" ||
		(c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
		return
	}

	// path.Clean от абсолютного пути не дает выйти за пределы FrontendDir
	if rel := path.Clean("/" + reqPath); rel != "/" {
		candidate := filepath.Join(h.FrontendDir, filepath.FromSlash(rel))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			c.File(candidate)
			return
		}
	}

	index := filepath.Join(h.FrontendDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Frontend is not built"})
		return
	}
	c.File(index)
}

// viewer возвращает ID из сессии или nil для анонимного запроса.
func viewer(c *gin.Context) *uint {
	if id, ok := middleware.SessionUser(c); ok {
		return &id
	}
	return nil
}

func serveContent(c *gin.Context, fc *services.FileContent, disposition string) {
	defer fc.Body.Close()

	value := mime.FormatMediaType(disposition, map[string]string{"filename": fc.Filename})
	if value == "" {
		value = disposition
	}
	c.DataFromReader(http.StatusOK, fc.Body.Size, fc.ContentType, fc.Body, map[string]string{
		"Content-Disposition": value,
	})
}

// respondError переводит ошибку сервиса в HTTP-статус и JSON {"message": ...}.
func respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("Ошибка обработки %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"message": services.PublicMessage(err, fallback)})
}

// bindingMessage формирует текст ошибки разбора тела запроса.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return "Missing required fields"
			}
		}
		return "Invalid " + strings.ToLower(verrs[0].Field())
	}
	return "Invalid request body"
}
