package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/ingestion"
	"github.com/poiesic/plantdesk/storage"
)

// ErrInvalidInput marks malformed requests.
var ErrInvalidInput = errors.New("invalid input")

// AppError represents an application-specific error with an HTTP status code.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MapError maps a domain error to an AppError with an appropriate HTTP status code.
func MapError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, core.ErrEmptyQuery),
		errors.Is(err, core.ErrUnknownSite),
		errors.Is(err, core.ErrSiteNotConfigured),
		errors.Is(err, core.ErrInvalidTurn),
		errors.Is(err, ingestion.ErrDatasetRequired),
		errors.Is(err, ingestion.ErrNoDocument),
		errors.Is(err, storage.ErrInvalidQuery):
		return NewAppError(http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, storage.ErrNotFound):
		return NewAppError(http.StatusNotFound, "Resource not found", err)
	case errors.Is(err, core.ErrTooLarge):
		return NewAppError(http.StatusRequestEntityTooLarge, "File too large", err)
	case errors.Is(err, core.ErrUnsupportedFormat):
		return NewAppError(http.StatusUnsupportedMediaType, "Unsupported file format", err)
	case errors.Is(err, core.ErrExtractionFailed):
		return NewAppError(http.StatusUnprocessableEntity, "Text extraction failed", err)
	case errors.Is(err, core.ErrUpstreamTimeout):
		return NewAppError(http.StatusGatewayTimeout, "Preprocessing timed out", err)
	case errors.Is(err, core.ErrUpstream),
		errors.Is(err, core.ErrRegistration),
		errors.Is(err, core.ErrChatRequestFailed):
		return NewAppError(http.StatusBadGateway, "Upstream request failed", err)
	}

	return NewAppError(http.StatusInternalServerError, "Internal server error", err)
}

func handleError(c *gin.Context, err error) {
	appErr := MapError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message, "detail": err.Error()})
}
