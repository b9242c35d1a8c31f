package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/batch"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/middleware"
	"github.com/alphagov/transition-mappings/internal/service"
)

// Enqueuer queues a batch for background processing
type Enqueuer interface {
	Enqueue(id uint) error
}

// CreateBatchRequest represents a uniform batch submission
type CreateBatchRequest struct {
	Paths          []string `json:"paths"`
	Type           string   `json:"type"`
	HTTPStatus     string   `json:"http_status"`
	NewURL         string   `json:"new_url"`
	TagList        string   `json:"tag_list"`
	UpdateExisting bool     `json:"update_existing"`
}

// CreateImportRequest represents a CSV batch submission
type CreateImportRequest struct {
	RawCSV         string `json:"raw_csv"`
	TagList        string `json:"tag_list"`
	UpdateExisting bool   `json:"update_existing"`
}

// BatchResponse is a batch with counts of what its entries do
type BatchResponse struct {
	*db.MappingsBatch
	Summary batch.Summary `json:"summary"`
}

func newBatchResponse(record *db.MappingsBatch) BatchResponse {
	return BatchResponse{MappingsBatch: record, Summary: batch.Summarize(record.Entries)}
}

// CreateBatchHandler handles uniform batch creation for a site
func CreateBatchHandler(dbConn *gorm.DB, batches *service.BatchService, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
			return
		}
		user, site, ok := userAndSite(c, dbConn, log)
		if !ok {
			return
		}

		b, err := batches.CreateUniform(c.Request.Context(), user, site, service.UniformParams{
			Paths:          req.Paths,
			Type:           req.Type,
			HTTPStatus:     req.HTTPStatus,
			NewURL:         req.NewURL,
			Tags:           splitTags(req.TagList),
			UpdateExisting: req.UpdateExisting,
		})
		respondCreated(c, b, err, log)
	}
}

// CreateImportHandler handles CSV batch creation for a site
func CreateImportHandler(dbConn *gorm.DB, batches *service.BatchService, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
			return
		}
		user, site, ok := userAndSite(c, dbConn, log)
		if !ok {
			return
		}

		b, err := batches.CreateImport(c.Request.Context(), user, site, service.ImportParams{
			RawCSV:         req.RawCSV,
			Tags:           splitTags(req.TagList),
			UpdateExisting: req.UpdateExisting,
		})
		respondCreated(c, b, err, log)
	}
}

// GetBatchHandler handles retrieving a batch with its entries
func GetBatchHandler(batches *service.BatchService, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := batchID(c)
		if !ok {
			return
		}

		record, err := batches.Get(c.Request.Context(), id)
		if err != nil {
			respondLookupError(c, err, log)
			return
		}
		c.JSON(http.StatusOK, newBatchResponse(record))
	}
}

// ProcessBatchHandler handles applying a batch. With ?async=true the batch is queued and
// 202 is returned at once.
func ProcessBatchHandler(batches *service.BatchService, queue Enqueuer, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := batchID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		if async, _ := strconv.ParseBool(c.Query("async")); async {
			if _, err := batches.Get(ctx, id); err != nil {
				respondLookupError(c, err, log)
				return
			}
			if err := queue.Enqueue(id); err != nil {
				log.Warn("Failed to queue batch", logger.Uint("batch_id", id), logger.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch queue unavailable"})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"id": id, "state": db.StatePending})
			return
		}

		if _, err := batches.Process(ctx, id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
				return
			}
			log.Error("Failed to process batch", logger.Uint("batch_id", id), logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process batch", "state": db.StateFailed})
			return
		}

		record, err := batches.Get(ctx, id)
		if err != nil {
			respondLookupError(c, err, log)
			return
		}
		c.JSON(http.StatusOK, newBatchResponse(record))
	}
}

// DeleteBatchHandler handles removing a batch and its entries
func DeleteBatchHandler(batches *service.BatchService, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := batchID(c)
		if !ok {
			return
		}
		if err := batches.Delete(c.Request.Context(), id); err != nil {
			respondLookupError(c, err, log)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func userAndSite(c *gin.Context, dbConn *gorm.DB, log logger.Logger) (*db.User, *db.Site, bool) {
	uc, ok := middleware.GetUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, nil, false
	}

	site, err := service.GetSiteByAbbr(c.Request.Context(), dbConn, c.Param("abbr"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
			return nil, nil, false
		}
		log.Error("Failed to load site", logger.String("abbr", c.Param("abbr")), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, nil, false
	}
	return &db.User{ID: uc.UserID, Username: uc.Username}, site, true
}

func respondCreated(c *gin.Context, b *batch.Batch, err error, log logger.Logger) {
	var errs batch.Errors
	switch {
	case errors.As(err, &errs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
	case err != nil:
		log.Error("Failed to create batch", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save batch"})
	default:
		c.JSON(http.StatusCreated, newBatchResponse(b.MappingsBatch))
	}
}

func respondLookupError(c *gin.Context, err error, log logger.Logger) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
		return
	}
	log.Error("Batch lookup failed", logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func batchID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch ID"})
		return 0, false
	}
	return uint(id), true
}

func splitTags(tagList string) []string {
	if strings.TrimSpace(tagList) == "" {
		return nil
	}
	return strings.Split(tagList, ",")
}
