package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/", handleIndex(db))
	router.GET("/api/requests", handleRequestList(db))
	router.GET("/api/requests/:id", handleRequestDetail(db))
}

// handleIndex renders the request table, filtered by ?status= when given.
func handleIndex(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := c.Query("status")
		reqs, err := ListRequests(db, filter)
		if err != nil {
			c.String(http.StatusInternalServerError, "query failed")
			return
		}
		counts, err := StatusSummary(db)
		if err != nil {
			c.String(http.StatusInternalServerError, "query failed")
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{
			"Requests": reqs,
			"Counts":   counts,
			"Filter":   filter,
		})
	}
}

func handleRequestList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := ListRequests(db, c.Query("status"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": reqs})
	}
}

func handleRequestDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		req, found, err := GetRequest(db, uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusOK, req)
	}
}
