// Package handler contains HTTP handlers for the API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
	"github.com/psychodetective/internal/service"
)

// Services groups the caller services exposed over HTTP.
type Services struct {
	Analyzer      *service.Analyzer
	Profiler      *service.Profiler
	Compatibility *service.CompatibilityService
	Personality   *service.PersonalityService
	Chat          *service.ChatService
	History       *service.HistoryService
}

// AnalysisHandler handles analysis requests.
type AnalysisHandler struct {
	services Services
	logger   *zap.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(services Services, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		services: services,
		logger:   logger.Named("analysis_handler"),
	}
}

// TextRequest is the body of POST /api/v1/analysis/text.
type TextRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Text   string `json:"text"`
}

// ProfileRequest is the body of POST /api/v1/profile.
type ProfileRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	service.ProfileRequest
}

// CompatibilityRequest is the body of POST /api/v1/compatibility.
type CompatibilityRequest struct {
	UserID         int64             `json:"user_id" binding:"required"`
	UserAnswers    map[string]string `json:"user_answers"`
	PartnerAnswers map[string]string `json:"partner_answers"`
}

// PersonalityRequest is the body of POST /api/v1/personality.
type PersonalityRequest struct {
	UserID  int64             `json:"user_id" binding:"required"`
	Answers map[string]string `json:"answers"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	UserID  int64                `json:"user_id" binding:"required"`
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history"`
}

// AnalyzeText processes POST /api/v1/analysis/text requests.
func (h *AnalysisHandler) AnalyzeText(c *gin.Context) {
	logger := h.requestLogger(c)

	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.services.Analyzer.AnalyzeText(c.Request.Context(), req.UserID, req.Text)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BuildProfile processes POST /api/v1/profile requests.
func (h *AnalysisHandler) BuildProfile(c *gin.Context) {
	logger := h.requestLogger(c)

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.services.Profiler.BuildProfile(c.Request.Context(), req.UserID, req.ProfileRequest)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AssessCompatibility processes POST /api/v1/compatibility requests.
func (h *AnalysisHandler) AssessCompatibility(c *gin.Context) {
	logger := h.requestLogger(c)

	var req CompatibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.services.Compatibility.Assess(c.Request.Context(), req.UserID, req.UserAnswers, req.PartnerAnswers)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ClassifyPersonality processes POST /api/v1/personality requests.
func (h *AnalysisHandler) ClassifyPersonality(c *gin.Context) {
	logger := h.requestLogger(c)

	var req PersonalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.services.Personality.Classify(c.Request.Context(), req.UserID, req.Answers)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Chat processes POST /api/v1/chat requests.
func (h *AnalysisHandler) Chat(c *gin.Context) {
	logger := h.requestLogger(c)

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.services.Chat.Reply(c.Request.Context(), req.UserID, req.Message, req.History)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListHistory processes GET /api/v1/users/:user_id/analyses requests.
func (h *AnalysisHandler) ListHistory(c *gin.Context) {
	logger := h.requestLogger(c)

	userID, ok := parseUserID(c, c.Param("user_id"))
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Code: codeInvalidRequest, Error: "invalid limit"})
			return
		}
	}

	records, err := h.services.History.List(c.Request.Context(), userID, domain.Kind(c.Query("kind")), limit)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"count":    len(records),
		"analyses": records,
	})
}

// GetAnalysis processes GET /api/v1/analyses/:id?user_id= requests.
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	logger := h.requestLogger(c)

	userID, ok := parseUserID(c, c.Query("user_id"))
	if !ok {
		return
	}

	rec, err := h.services.History.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UserStats processes GET /api/v1/users/:user_id/stats requests.
func (h *AnalysisHandler) UserStats(c *gin.Context) {
	logger := h.requestLogger(c)

	userID, ok := parseUserID(c, c.Param("user_id"))
	if !ok {
		return
	}

	stats, err := h.services.History.Stats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parseUserID(c *gin.Context, raw string) (int64, bool) {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Code: codeInvalidRequest, Error: "invalid user id"})
		return 0, false
	}
	return userID, true
}

func (h *AnalysisHandler) requestLogger(c *gin.Context) *zap.Logger {
	return h.logger.With(
		zap.String("request_id", c.GetString("request_id")),
		zap.String("route", c.FullPath()),
	)
}
