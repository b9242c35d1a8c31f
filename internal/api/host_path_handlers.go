package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/service"
)

// HostPathRequest represents an observed URL on one of a site's hosts
type HostPathRequest struct {
	URL string `json:"url" binding:"required"`
}

// CreateHostPathHandler handles recording a host path for a site
func CreateHostPathHandler(dbConn *gorm.DB, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req HostPathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
			return
		}

		site, err := service.GetSiteByAbbr(c.Request.Context(), dbConn, c.Param("abbr"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
				return
			}
			log.Error("Failed to load site", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		hostPath, err := service.RecordHostPath(c.Request.Context(), dbConn, site, req.URL)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"url": []string{err.Error()}}})
			return
		}
		c.JSON(http.StatusCreated, hostPath)
	}
}
