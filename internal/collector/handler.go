package collector

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/annotation"
	"go-region-annotator/internal/logger"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// schemaResponse is the category schema document. head/tail and
// headTabs/tailTabs carry the same lists; the tab aliases exist for older
// agents that read those keys.
type schemaResponse struct {
	OK       bool     `json:"ok"`
	Head     []string `json:"head"`
	Tail     []string `json:"tail"`
	HeadTabs []string `json:"headTabs"`
	TailTabs []string `json:"tailTabs"`
}

// NewHandler builds the collector's HTTP surface.
func NewHandler(store *Store, maxRequestBodySize int64) http.Handler {
	r := gin.Default()

	r.Use(requestSizeLimiter(maxRequestBodySize))

	r.GET("/health", healthCheck(store))

	// Agents of different vintages request the schema under different
	// paths; all serve the same document.
	for _, path := range []string{"/tag/schema", "/schema", "/tags/schema", "/sync/schema"} {
		r.GET(path, getSchema(store))
	}

	r.POST("/tag/add", addRecord(store))
	r.POST("/sync/tags", syncSimplified(store))

	return r
}

func healthCheck(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := store.Count(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "store unavailable", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "available",
			"records": count,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func getSchema(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		head, err := store.Categories(ctx, annotation.KindHead)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to load schema", err)
			return
		}
		tail, err := store.Categories(ctx, annotation.KindTail)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to load schema", err)
			return
		}

		c.JSON(http.StatusOK, schemaResponse{
			OK:       true,
			Head:     head,
			Tail:     tail,
			HeadTabs: head,
			TailTabs: tail,
		})
	}
}

// addRecord accepts a full record, image payload included.
func addRecord(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rec annotation.Record
		if err := c.ShouldBindJSON(&rec); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		if err := rec.Validate(); err != nil {
			respondError(c, http.StatusUnprocessableEntity, "invalid record", err)
			return
		}

		if err := store.Upsert(c.Request.Context(), rec); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to store record", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"record_id": rec.ID,
			"kind":      rec.Kind,
			"has_image": rec.ImageData != "",
			"ip":        c.ClientIP(),
		}).Info("Annotation record stored")

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "record stored",
			"id":      rec.ID,
		})
	}
}

// syncSimplified accepts the reduced shape used by the secondary delivery
// path. Any image already stored for the record is kept.
func syncSimplified(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var simplified annotation.Simplified
		if err := c.ShouldBindJSON(&simplified); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		rec := annotation.Record{
			ID:            simplified.ID,
			Kind:          simplified.Kind,
			Subcategory:   simplified.Subcategory,
			PrimaryText:   simplified.PrimaryText,
			SecondaryText: simplified.SecondaryText,
			SourceRef:     simplified.SourceRef,
			CreatedAt:     simplified.CreatedAt,
		}
		if err := rec.Validate(); err != nil {
			respondError(c, http.StatusUnprocessableEntity, "invalid record", err)
			return
		}

		if err := store.Upsert(c.Request.Context(), rec); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to store record", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"record_id": rec.ID,
			"kind":      rec.Kind,
			"ip":        c.ClientIP(),
		}).Info("Simplified annotation record stored")

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "record stored without image",
			"id":      rec.ID,
		})
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
