package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicpulse/civicpulse/pkg/agent"
	"github.com/civicpulse/civicpulse/pkg/apperr"
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "CivicPulse Analytics API",
		"status":  "running",
	})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"agent_initialized": h.deps.Orchestrator != nil,
		"voice_initialized": h.deps.Voice != nil,
	})
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
	Mode    string `json:"mode"`
}

// chatStream runs a session and writes each event as one SSE frame.
// The HTTP status is committed as 200 when the stream opens; failures
// after that are error events, not statuses. A client disconnect
// cancels the session via the request context.
func (h *handlers) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return
	}
	mode, err := agent.ParseMode(req.Mode)
	if err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "%v", err))
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	events := h.deps.Orchestrator.Run(c.Request.Context(), req.Message, mode)
	for ev := range events {
		if !writeSSE(c, ev) {
			return
		}
	}
}

// writeSSE serializes one event as "data: <one-line JSON>\n\n".
func writeSSE(c *gin.Context, ev agent.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

// chat is the non-streaming variant: the whole session is merged into
// one JSON object. Used for testing and scripted clients.
func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return
	}
	mode, err := agent.ParseMode(req.Mode)
	if err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "%v", err))
		return
	}

	merged := agent.Collect(h.deps.Orchestrator.Run(c.Request.Context(), req.Message, mode))
	if merged.Error != nil {
		c.JSON(http.StatusInternalServerError, merged.Error)
		return
	}
	c.JSON(http.StatusOK, merged)
}

type predictRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *handlers) clusterPredict(c *gin.Context) {
	if h.deps.Predictor == nil {
		writeError(c, http.StatusServiceUnavailable, apperr.New(apperr.KindConfig, "cluster storage is not configured"))
		return
	}
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return
	}

	prediction, err := h.deps.Predictor.Predict(c.Request.Context(), req.Message)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

type visitRequest struct {
	ParentClusterID int `json:"parent_cluster_id"`
	ChildClusterID  int `json:"child_cluster_id"`
}

func (h *handlers) analyticsVisit(c *gin.Context) {
	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return
	}

	visit, err := h.deps.Orchestrator.AnalyticsVisit(c.Request.Context(), req.ParentClusterID, req.ChildClusterID)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, visit)
}

type reportRequest struct {
	ParentClusterID int    `json:"parent_cluster_id"`
	ChildClusterID  int    `json:"child_cluster_id"`
	Discussion      string `json:"discussion" binding:"required"`
}

func (h *handlers) reportGenerate(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperr.New(apperr.KindConfig, "invalid request: %v", err))
		return
	}

	pdf, err := h.deps.Report.Generate(c.Request.Context(), req.ParentClusterID, req.ChildClusterID, req.Discussion)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=analytics-report.pdf")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// writeError emits the taxonomy body for non-streaming endpoints.
func writeError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{
		"kind":    string(apperr.KindOf(err)),
		"message": apperr.MessageOf(err),
	})
}

// statusFor maps a taxonomy kind to an HTTP status for non-streaming
// endpoints.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUnsupportedFormat:
		return http.StatusBadRequest
	case apperr.KindUnknownProduct:
		return http.StatusNotFound
	case apperr.KindConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
