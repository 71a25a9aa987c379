package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shortener/internal/middleware"
	"shortener/internal/model"
	"shortener/internal/repository"
	"shortener/internal/service"
)

type CreateURLRequest struct {
	OriginalURL   string  `json:"original_url" binding:"required"`
	PreferredCode *string `json:"preferred_short_code" binding:"omitempty,min=3,max=50"`
	Title         *string `json:"title" binding:"omitempty,max=255"`
}

type UpdateURLRequest struct {
	Title    *string `json:"title" binding:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

type URLResponse struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	Title       *string   `json:"title"`
	Clicks      int64     `json:"clicks"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `json:"user_id"`
}

type URLListResponse struct {
	URLs       []URLResponse `json:"urls"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

type URLStatsResponse struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type URLHandler struct {
	svc    *service.URLService
	logger *zap.Logger
}

func NewURLHandler(svc *service.URLService) *URLHandler {
	return &URLHandler{
		svc:    svc,
		logger: zap.L().With(zap.String("component", "URLHandler")),
	}
}

func (h *URLHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		h.unauthorized(c)
		return
	}

	var req CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_JSON",
		})
		return
	}

	url, err := h.svc.Create(c.Request.Context(), user.ID, service.CreateURLInput{
		OriginalURL:   req.OriginalURL,
		PreferredCode: req.PreferredCode,
		Title:         req.Title,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.newURLResponse(c, url))
}

func (h *URLHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		h.unauthorized(c)
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	filter, err := parseListFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid filter parameter",
			Code:  "INVALID_FILTER",
		})
		return
	}

	urls, total, err := h.svc.ListByUser(c.Request.Context(), user.ID, page, pageSize, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	responses := make([]URLResponse, 0, len(urls))
	for i := range urls {
		responses = append(responses, h.newURLResponse(c, &urls[i]))
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	c.JSON(http.StatusOK, URLListResponse{
		URLs:       responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func (h *URLHandler) Get(c *gin.Context) {
	url, err := h.svc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.newURLResponse(c, url))
}

func (h *URLHandler) Stats(c *gin.Context) {
	url, err := h.svc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, URLStatsResponse{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		Clicks:      url.Clicks,
		CreatedAt:   url.CreatedAt,
		IsActive:    url.IsActive,
	})
}

func (h *URLHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		h.unauthorized(c)
		return
	}

	var req UpdateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_JSON",
		})
		return
	}

	url, err := h.svc.Update(c.Request.Context(), c.Param("code"), user.ID, service.UpdateURLInput{
		Title:    req.Title,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.newURLResponse(c, url))
}

func (h *URLHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		h.unauthorized(c)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("code"), user.ID); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Redirect is the public resolution endpoint: it counts the click and
// sends the browser to the original URL.
func (h *URLHandler) Redirect(c *gin.Context) {
	url, err := h.svc.RecordView(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Redirect(http.StatusFound, url.OriginalURL)
}

func (h *URLHandler) newURLResponse(c *gin.Context, url *model.URL) URLResponse {
	return URLResponse{
		ID:          url.ID,
		OriginalURL: url.OriginalURL,
		ShortCode:   url.ShortCode,
		ShortURL:    buildShortURL(c, url.ShortCode),
		Title:       url.Title,
		Clicks:      url.Clicks,
		IsActive:    url.IsActive,
		CreatedAt:   url.CreatedAt,
		UserID:      url.UserID,
	}
}

func (h *URLHandler) unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error: "Unauthorized access",
		Code:  "UNAUTHORIZED",
	})
}

func (h *URLHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid URL format",
			Code:  "INVALID_URL",
		})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid short code format",
			Code:  "INVALID_CODE",
		})
	case errors.Is(err, service.ErrReservedCode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Short code is reserved",
			Code:  "RESERVED_CODE",
		})
	case errors.Is(err, service.ErrURLNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Short URL not found",
			Code:  "URL_NOT_FOUND",
		})
	case errors.Is(err, service.ErrURLGone):
		c.JSON(http.StatusGone, ErrorResponse{
			Error: "Short URL has been deactivated",
			Code:  "URL_GONE",
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: "You don't have permission to modify this URL",
			Code:  "FORBIDDEN",
		})
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		h.logger.Error("Short code allocation exhausted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Service temporarily unavailable",
			Code:  "ALLOCATION_EXHAUSTED",
		})
	case errors.Is(err, repository.ErrDatabaseError):
		h.logger.Error("Database error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Database error",
			Code:  "DB_ERROR",
		})
	default:
		h.logger.Error("Unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}

func buildShortURL(c *gin.Context, code string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/" + code
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseListFilter(c *gin.Context) (*repository.ListFilter, error) {
	filter := &repository.ListFilter{}
	hasAny := false

	if title := strings.TrimSpace(c.Query("title")); title != "" {
		filter.TitleContains = &title
		hasAny = true
	}
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		filter.IsActive = &active
		hasAny = true
	}
	if raw := c.Query("created_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, err
		}
		filter.CreatedFrom = &from
		hasAny = true
	}
	if raw := c.Query("created_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, err
		}
		filter.CreatedTo = &to
		hasAny = true
	}

	if !hasAny {
		return nil, nil
	}
	return filter, nil
}
