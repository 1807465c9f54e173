package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jamesarrow/kpi-vet/internal/parser"
)

// UploadReport ingests one Excel export.
// POST /api/reports/upload, multipart field "file".
func (h *Handler) UploadReport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file received (expected multipart field \"file\")"})
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	res, err := h.coordinator.Ingest(buf, fileHeader.Filename)
	if err != nil {
		var schemaErr *parser.SchemaMismatchError
		switch {
		case errors.As(err, &schemaErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": schemaErr.Error()})
		case errors.Is(err, parser.ErrEmptyExtraction):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no recognizable periods or data in the file"})
		default:
			h.log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("ingestion failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		}
		return
	}

	if len(res.Touched) > 0 {
		h.cache.invalidate(res.Touched)
	}

	c.JSON(http.StatusOK, res)
}
