package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragchat/internal/chat"
	"ragchat/internal/domain"
	"ragchat/internal/middleware"
)

const (
	messagesDefaultLimit = 200
	searchDefaultLimit   = 20
)

type ChatHandler struct {
	store *chat.Store
	log   *zap.Logger
}

func NewChatHandler(store *chat.Store, log *zap.Logger) *ChatHandler {
	return &ChatHandler{store: store, log: log}
}

type createChatRequest struct {
	Title        string `json:"title"`
	FirstMessage string `json:"first_message"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner := c.GetString(middleware.ContextUserIDKey)
	session, err := h.store.CreateSession(c.Request.Context(), owner, req.Title, req.FirstMessage)
	if err != nil {
		h.log.Error("create chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         session.ID,
		"title":      session.Title,
		"created_at": session.CreatedAt,
	})
}

func (h *ChatHandler) List(c *gin.Context) {
	includeArchived := c.Query("include_archived") == "true"
	owner := c.GetString(middleware.ContextUserIDKey)

	buckets, err := h.store.ListSessions(c.Request.Context(), owner, includeArchived)
	if err != nil {
		h.log.Error("list chats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
		return
	}
	if buckets == nil {
		buckets = []chat.Bucket{}
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func (h *ChatHandler) Messages(c *gin.Context) {
	limit := intQuery(c, "limit", messagesDefaultLimit)
	owner := c.GetString(middleware.ContextUserIDKey)

	messages, err := h.store.GetMessages(c.Request.Context(), c.Param("id"), owner, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		h.log.Error("load messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": renderMessages(messages)})
}

func (h *ChatHandler) Delete(c *gin.Context) {
	permanent := c.Query("permanent") == "true"
	owner := c.GetString(middleware.ContextUserIDKey)

	deleted, err := h.store.DeleteSession(c.Request.Context(), c.Param("id"), owner, permanent)
	if err != nil {
		h.log.Error("delete chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "permanent": permanent})
}

type renameRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *ChatHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner := c.GetString(middleware.ContextUserIDKey)
	h.applyUpdate(c, func() (bool, error) {
		return h.store.RenameSession(c.Request.Context(), c.Param("id"), owner, req.Title)
	})
}

type pinRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

func (h *ChatHandler) Pin(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner := c.GetString(middleware.ContextUserIDKey)
	h.applyUpdate(c, func() (bool, error) {
		return h.store.PinSession(c.Request.Context(), c.Param("id"), owner, *req.Pinned)
	})
}

type archiveRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

func (h *ChatHandler) Archive(c *gin.Context) {
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner := c.GetString(middleware.ContextUserIDKey)
	h.applyUpdate(c, func() (bool, error) {
		return h.store.ArchiveSession(c.Request.Context(), c.Param("id"), owner, *req.Archived)
	})
}

func (h *ChatHandler) applyUpdate(c *gin.Context, update func() (bool, error)) {
	matched, err := update()
	if err != nil {
		h.log.Error("update chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update chat"})
		return
	}
	if !matched {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *ChatHandler) Search(c *gin.Context) {
	text := c.Query("q")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit := intQuery(c, "limit", searchDefaultLimit)
	owner := c.GetString(middleware.ContextUserIDKey)

	results, err := h.store.SearchSessions(c.Request.Context(), owner, text, limit)
	if err != nil {
		h.log.Error("search chats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	if results == nil {
		results = []chat.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *ChatHandler) Statistics(c *gin.Context) {
	owner := c.GetString(middleware.ContextUserIDKey)
	stats, err := h.store.Statistics(c.Request.Context(), owner)
	if err != nil {
		h.log.Error("chat statistics failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type messageView struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Timestamp string          `json:"timestamp"`
	Sources   []domain.Source `json:"sources,omitempty"`
}

func renderMessages(messages []*domain.Message) []messageView {
	views := make([]messageView, len(messages))
	for i, m := range messages {
		views[i] = messageView{
			ID:        m.ID,
			Role:      m.Role.String(),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Sources:   m.Sources,
		}
	}
	return views
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
