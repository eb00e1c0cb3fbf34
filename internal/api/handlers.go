package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/database"
	"apartmenthunter/internal/models"
	"apartmenthunter/internal/scheduler"
	"apartmenthunter/internal/scraping"
)

// ScanTrigger starts a scan cycle on demand.
type ScanTrigger interface {
	RunOnce(ctx context.Context) (scraping.ScanResult, error)
}

type Handler struct {
	db      *database.Database
	logger  *logrus.Logger
	scanner ScanTrigger
}

type ListQuery struct {
	Source string `form:"source"`
	Limit  int    `form:"limit"`
	All    bool   `form:"all"`
}

type FilterRequest struct {
	Name     string                `json:"name" binding:"required"`
	Criteria models.SearchCriteria `json:"criteria"`
}

// NewHandler builds the API handler. scanner may be nil, which disables
// POST /api/scan.
func NewHandler(db *database.Database, scanner ScanTrigger, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:      db,
		logger:  logger,
		scanner: scanner,
	}
}

func (h *Handler) GetListings(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}

	listings, err := h.db.List(c.Request.Context(), database.ListFilter{
		Source:          q.Source,
		Limit:           q.Limit,
		IncludeInactive: q.All,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listings"})
		return
	}

	c.JSON(http.StatusOK, listings)
}

func (h *Handler) GetListing(c *gin.Context) {
	fingerprint := c.Param("fingerprint")
	listing, err := h.db.GetByFingerprint(c.Request.Context(), fingerprint)
	if err != nil {
		h.logger.WithError(err).WithField("fingerprint", fingerprint).Error("Failed to get listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listing"})
		return
	}
	if listing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

func (h *Handler) GetListingNotifications(c *gin.Context) {
	records, err := h.db.ListNotifications(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) SearchListings(c *gin.Context) {
	var criteria models.SearchCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	listings, err := h.db.Search(c.Request.Context(), criteria)
	if err != nil {
		h.logger.WithError(err).Error("Failed to search listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search listings"})
		return
	}

	c.JSON(http.StatusOK, listings)
}

func (h *Handler) DeactivateListing(c *gin.Context) {
	h.mutate(c, "deactivate", h.db.MarkInactive)
}

func (h *Handler) DeleteListing(c *gin.Context) {
	h.mutate(c, "delete", h.db.Delete)
}

func (h *Handler) mutate(c *gin.Context, action string, fn func(context.Context, string) (bool, error)) {
	fingerprint := c.Param("fingerprint")
	found, err := fn(c.Request.Context(), fingerprint)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"fingerprint": fingerprint,
			"action":      action,
		}).Error("Failed to update listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action + " listing"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fingerprint": fingerprint,
		"action":      action,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.db.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	sessions, err := h.db.ListSessions(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sessions"})
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) GetFilters(c *gin.Context) {
	filters, err := h.db.ListFilters(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		h.logger.WithError(err).Error("Failed to get filters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get filters"})
		return
	}

	c.JSON(http.StatusOK, filters)
}

func (h *Handler) CreateFilter(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	f := models.NewStoredFilter(req.Name, req.Criteria)
	id, err := h.db.SaveFilter(c.Request.Context(), &f)
	if err != nil {
		h.logger.WithError(err).Error("Failed to save filter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save filter"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// RunScan runs one cycle synchronously and returns its result.
func (h *Handler) RunScan(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scanning is not enabled"})
		return
	}

	res, err := h.scanner.RunOnce(c.Request.Context())
	if errors.Is(err, scheduler.ErrScanInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Scan already in progress"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to run scan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run scan"})
		return
	}

	c.JSON(http.StatusOK, res)
}
