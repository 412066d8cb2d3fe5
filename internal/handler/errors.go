package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
	"github.com/psychodetective/internal/service"
)

// Error codes returned to clients.
const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeTextTooShort   = "TEXT_TOO_SHORT"
	codeTextTooLong    = "TEXT_TOO_LONG"
	codeOverloaded     = "OVERLOADED"
	codeRateLimited    = "RATE_LIMITED"
	codeNotFound       = "NOT_FOUND"
	codeInternal       = "INTERNAL"
)

// overloadRetryAfter is the Retry-After hint sent with 503 responses.
const overloadRetryAfter = 30

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status, code, message := http.StatusInternalServerError, codeInternal, "Произошла ошибка. Попробуй позже."

	switch {
	case errors.Is(err, domain.ErrTextTooShort):
		status, code, message = http.StatusBadRequest, codeTextTooShort, err.Error()
	case errors.Is(err, domain.ErrTextTooLong):
		status, code, message = http.StatusBadRequest, codeTextTooLong, err.Error()
	case service.IsInputError(err):
		status, code, message = http.StatusBadRequest, codeInvalidRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, codeNotFound, "Not found"
	case errors.Is(err, domain.ErrOverloaded):
		status, code, message = http.StatusServiceUnavailable, codeOverloaded, "Временные проблемы с AI. Попробуй позже."
		c.Header("Retry-After", strconv.Itoa(overloadRetryAfter))
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("request failed", zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}

	c.JSON(status, ErrorResponse{Success: false, Code: code, Error: message})
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Code:    codeInvalidRequest,
		Error:   "Invalid request body: " + err.Error(),
	})
}
