package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CageChen/modmirror/internal/mirror"
)

// NewRouter wires the API routes for m. ws may be nil to disable pushes.
func NewRouter(m *mirror.Mirror, ws *WSHandler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	runHandler := NewRunHandler(m, logger)
	previewHandler := NewPreviewHandler(m)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/status", runHandler.GetStatus)
		api.POST("/runs", runHandler.StartRun)
		api.GET("/report", runHandler.GetReport)
		api.GET("/preview", previewHandler.GetPreview)
		if ws != nil {
			api.GET("/ws", ws.HandleWS)
		}
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("op", "http"),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
