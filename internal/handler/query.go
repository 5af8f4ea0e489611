package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragchat/internal/middleware"
	"ragchat/internal/query"
)

type QueryHandler struct {
	orchestrator *query.Orchestrator
	defaultK     int
	log          *zap.Logger
}

func NewQueryHandler(orchestrator *query.Orchestrator, defaultK int, log *zap.Logger) *QueryHandler {
	return &QueryHandler{orchestrator: orchestrator, defaultK: defaultK, log: log}
}

type queryRequest struct {
	Question  string `json:"question" binding:"required"`
	K         int    `json:"k"`
	SessionID string `json:"chat_id"`
}

// Submit handles both the authenticated and the public query route; the
// identity comes from the context either way.
func (h *QueryHandler) Submit(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.K <= 0 {
		req.K = h.defaultK
	}

	identity := middleware.CallerIdentity(c)

	// Anonymous callers cannot attach history.
	sessionID := req.SessionID
	if !identity.Registered() {
		sessionID = ""
	}

	result, err := h.orchestrator.Submit(c.Request.Context(), identity, req.Question, req.K, sessionID)
	if err != nil {
		h.log.Error("query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if result.LimitExceeded {
		c.JSON(http.StatusTooManyRequests, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Limits reports quota standing without consuming a query.
func (h *QueryHandler) Limits(c *gin.Context) {
	decision, err := h.orchestrator.CheckLimit(c.Request.Context(), middleware.CallerIdentity(c))
	if err != nil {
		h.log.Error("limit check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "limit check failed"})
		return
	}
	c.JSON(http.StatusOK, decision)
}
