package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kitesync/kitesync/internal/database"
	"github.com/kitesync/kitesync/internal/models"
	"github.com/kitesync/kitesync/internal/uploader"
)

// RunFunc triggers a batch run on demand (POST /sync).
type RunFunc func(ctx context.Context) (*models.Report, error)

type Handler struct {
	store  database.Store
	runner RunFunc
}

func NewHandler(store database.Store, runner RunFunc) *Handler {
	return &Handler{store: store, runner: runner}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/", h.Stats)
	router.GET("/uploads", h.UploadList)
	router.POST("/sync", h.Sync)
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.store.GetStats()
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) UploadList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit <= 0 {
		limit = 50
	}

	uploads, err := h.store.GetUploads(limit, offset)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if uploads == nil {
		uploads = []database.UploadRecord{}
	}
	c.JSON(http.StatusOK, uploads)
}

func (h *Handler) Sync(c *gin.Context) {
	report, err := h.runner(c.Request.Context())
	if err != nil {
		if errors.Is(err, uploader.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":    report.RunID,
		"summary":   report.Summary(),
		"succeeded": report.Count(models.StatusSucceeded),
		"skipped":   report.Count(models.StatusSkipped),
		"failed":    report.Count(models.StatusFailed),
	})
}
