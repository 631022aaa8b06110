package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/middleware"
)

// ErrorCode is the machine-readable code in error responses.
type ErrorCode string

const (
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
	ErrorCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
)

type ErrorBody struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(c *gin.Context, status int, code ErrorCode, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(middleware.RequestIDKey),
	}})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, message)
}

// respondError maps service errors onto HTTP statuses. Unclassified errors
// are logged and hidden behind a 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(c, http.StatusNotFound, ErrorCodeNotFound, err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		writeError(c, http.StatusConflict, ErrorCodeConflict, err.Error())
	case errors.Is(err, apperrors.ErrValidation):
		writeError(c, http.StatusBadRequest, ErrorCodeValidation, err.Error())
	default:
		_ = c.Error(err)
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}
