package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragchat/internal/retrieval"
)

type IngestHandler struct {
	ingestor *retrieval.Ingestor
	dataDir  string
	log      *zap.Logger
}

func NewIngestHandler(ingestor *retrieval.Ingestor, dataDir string, log *zap.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, dataDir: dataDir, log: log}
}

// Ingest reloads every markdown file from the data directory into the
// knowledge base. Guarded by the admin API key middleware.
func (h *IngestHandler) Ingest(c *gin.Context) {
	files, err := h.ingestor.IngestDirectory(c.Request.Context(), h.dataDir)
	if err != nil {
		h.log.Error("ingest failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           "ingest failed",
			"files_processed": files,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"files_processed": files,
	})
}
