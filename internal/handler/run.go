// Package handler exposes a Mirror over HTTP and WebSocket.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CageChen/modmirror/internal/mirror"
	"github.com/CageChen/modmirror/internal/report"
)

// RunHandler handles run, status and report requests
type RunHandler struct {
	m        *mirror.Mirror
	renderer *report.Renderer
	log      *zap.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(m *mirror.Mirror, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{m: m, renderer: report.NewRenderer(), log: logger}
}

// GetStatus returns whether a run is active, the configuration and the
// last report.
func (h *RunHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running": h.m.Running(),
		"config":  h.m.Config(),
		"last":    h.m.LastReport(),
	})
}

// StartRun runs the mirror and returns its report. A request made while
// another run is active gets 409.
func (h *RunHandler) StartRun(c *gin.Context) {
	r, err := h.m.Run()
	switch {
	case errors.Is(err, mirror.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	case err != nil:
		h.log.Error("run failed", zap.String("op", "run"), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"report": r,
		})
	default:
		c.JSON(http.StatusOK, r)
	}
}

// GetReport renders the last report as HTML, or as Markdown or JSON when
// the format query parameter asks for it.
func (h *RunHandler) GetReport(c *gin.Context) {
	r := h.m.LastReport()
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no run has completed yet",
		})
		return
	}

	switch c.Query("format") {
	case "json":
		c.JSON(http.StatusOK, r)
	case "md", "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", report.Markdown(r))
	default:
		res, err := h.renderer.Render(r)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "failed to render report: " + err.Error(),
			})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.Page(res))
	}
}
