// Package handlers exposes the workflow over HTTP.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"frameworks/api_lookout/internal/keys"
	"frameworks/api_lookout/internal/workflow"
	"frameworks/pkg/clients"
	"frameworks/pkg/logging"
	"frameworks/pkg/middleware"
)

// Workflow is the subset of the state machine the HTTP layer drives.
type Workflow interface {
	StartCollection(ctx context.Context, req workflow.CollectionRequest) (*workflow.Started, error)
	StartSynthesis(ctx context.Context, id string) (*workflow.Task, error)
	StartGeneration(ctx context.Context, id string) (*workflow.Task, error)
	CompleteWorkflow(ctx context.Context, req workflow.CollectionRequest) (*workflow.Started, error)
	Status(ctx context.Context, id string) (*workflow.Status, error)
	Results(ctx context.Context, id string) (*workflow.Results, error)
	Download(ctx context.Context, id, selector string) (*workflow.Download, error)
}

// KeyStats reports credential pool state.
type KeyStats interface {
	Stats() map[string]keys.ProviderStats
	Available() []string
}

// BreakerStates reports the circuit breaker of each provider called so far.
type BreakerStates interface {
	States() map[string]clients.CircuitBreakerState
}

type Handler struct {
	Workflow Workflow
	Keys     KeyStats
	Breakers BreakerStates
	Logger   logging.Logger
	// ModulesToGenerate is reported by the step 3 trigger.
	ModulesToGenerate int
}

// Register mounts the API under /api.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	wf := api.Group("/workflow")
	wf.POST("/step1/start", h.StartCollection)
	wf.POST("/step2/start", h.StartSynthesis)
	wf.POST("/step3/start", h.StartGeneration)
	wf.POST("/complete", h.CompleteWorkflow)
	wf.GET("/status/:session_id", h.GetStatus)
	wf.GET("/results/:session_id", h.GetResults)
	wf.GET("/download/:session_id/:file_type", h.DownloadReport)
	api.GET("/providers/stats", h.GetProviderStats)
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func statusEndpoint(id string) string { return "/api/workflow/status/" + id }

func (h *Handler) StartCollection(c *gin.Context) {
	var req workflow.CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	started, err := h.Workflow.StartCollection(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "start collection", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"session_id":         started.SessionID,
		"message":            "Step 1 started: deep crawl, search APIs, social search and screenshots",
		"query":              started.Query,
		"estimated_duration": started.EstimatedDuration,
		"next_step":          "/api/workflow/step2/start",
		"status_endpoint":    statusEndpoint(started.SessionID),
	})
}

func (h *Handler) StartSynthesis(c *gin.Context) {
	id, ok := bindSessionID(c)
	if !ok {
		return
	}
	if _, err := h.Workflow.StartSynthesis(c.Request.Context(), id); err != nil {
		h.fail(c, "start synthesis", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"session_id":         id,
		"message":            "Step 2 started: AI synthesis",
		"estimated_duration": workflow.EstimateSynthesis,
		"next_step":          "/api/workflow/step3/start",
		"status_endpoint":    statusEndpoint(id),
	})
}

func (h *Handler) StartGeneration(c *gin.Context) {
	id, ok := bindSessionID(c)
	if !ok {
		return
	}
	if _, err := h.Workflow.StartGeneration(c.Request.Context(), id); err != nil {
		h.fail(c, "start generation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"session_id":          id,
		"message":             fmt.Sprintf("Step 3 started: generating %d modules", h.ModulesToGenerate),
		"estimated_duration":  workflow.EstimateGeneration,
		"modules_to_generate": h.ModulesToGenerate,
		"status_endpoint":     statusEndpoint(id),
	})
}

func (h *Handler) CompleteWorkflow(c *gin.Context) {
	var req workflow.CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	started, err := h.Workflow.CompleteWorkflow(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "start complete workflow", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":                  true,
		"session_id":               started.SessionID,
		"message":                  "Complete workflow started",
		"query":                    started.Query,
		"estimated_total_duration": started.EstimatedDuration,
		"steps": []string{
			"Step 1: collection (" + workflow.EstimateCollection + ")",
			"Step 2: synthesis (" + workflow.EstimateSynthesis + ")",
			"Step 3: module generation (" + workflow.EstimateGeneration + ")",
		},
		"status_endpoint": statusEndpoint(started.SessionID),
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	st, err := h.Workflow.Status(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.fail(c, "get status", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) GetResults(c *gin.Context) {
	res, err := h.Workflow.Results(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.fail(c, "get results", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DownloadReport(c *gin.Context) {
	dl, err := h.Workflow.Download(c.Request.Context(), c.Param("session_id"), c.Param("file_type"))
	if err != nil {
		h.fail(c, "download report", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", dl.Data)
}

func (h *Handler) GetProviderStats(c *gin.Context) {
	if h.Keys == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Key registry not configured"})
		return
	}
	resp := gin.H{
		"providers": h.Keys.Stats(),
		"available": h.Keys.Available(),
	}
	if h.Breakers != nil {
		breakers := map[string]string{}
		for name, st := range h.Breakers.States() {
			breakers[name] = st.String()
		}
		resp["breakers"] = breakers
	}
	c.JSON(http.StatusOK, resp)
}

func bindSessionID(c *gin.Context) (string, bool) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return "", false
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return "", false
	}
	return id, true
}

// fail maps workflow errors to status codes.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	msg := "Internal error"
	switch {
	case errors.Is(err, workflow.ErrSegmentRequired):
		status, msg = http.StatusBadRequest, "segmento is required"
	case errors.Is(err, workflow.ErrInvalidSelector):
		status, msg = http.StatusBadRequest, "Invalid report type"
	case errors.Is(err, workflow.ErrSessionNotFound):
		status, msg = http.StatusNotFound, "Session not found"
	case errors.Is(err, workflow.ErrArtifactNotFound):
		status, msg = http.StatusNotFound, "File not found"
	case errors.Is(err, workflow.ErrSessionTerminal):
		status, msg = http.StatusConflict, "Session already finished"
	case errors.Is(err, workflow.ErrStageConflict):
		status, msg = http.StatusConflict, "Stage already started"
	}
	if status == http.StatusInternalServerError && h.Logger != nil {
		middleware.GetContextLogger(c, h.Logger).WithError(err).WithField("operation", op).Error("Workflow request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}
