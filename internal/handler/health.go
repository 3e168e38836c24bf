package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type StreamStatus interface {
	Connected() bool
}

type HealthHandler struct {
	stream StreamStatus
	dryRun bool
}

func NewHealthHandler(stream StreamStatus, dryRun bool) *HealthHandler {
	return &HealthHandler{stream: stream, dryRun: dryRun}
}

func (h *HealthHandler) Get(c *gin.Context) {
	body := gin.H{"status": "ok", "dry_run": h.dryRun}
	if h.stream != nil {
		body["stream_connected"] = h.stream.Connected()
	}
	c.JSON(http.StatusOK, body)
}
