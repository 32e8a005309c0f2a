package server

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/edgetrack/internal/config"
	"github.com/danmuck/edgetrack/internal/target"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type createTargetRequest struct {
	Token  string `json:"token"`
	Parent string `json:"parent"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type propertyRequest struct {
	Value string `json:"value"`
}

type trackRequest struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
}

func (s *Server) registerRoutes() {
	s.httpRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": s.name,
			"targets":   s.registry.Len(),
		})
	})

	s.httpRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.httpRouter.GET("/stats", func(c *gin.Context) {
		body := gin.H{"events": s.registry.Stats()}
		if s.queueStats != nil {
			body["queue"] = s.queueStats()
		}
		c.JSON(http.StatusOK, body)
	})

	targets := s.httpRouter.Group("/targets")
	targets.GET("", s.listTargets)
	targets.GET("/export", s.exportTargets)
	targets.GET("/:token", s.withTarget(s.getTarget))

	guarded := targets.Group("", s.requireToken())
	guarded.POST("", s.createTarget)
	guarded.DELETE("/:token", s.removeTarget)
	guarded.PUT("/:token/enabled", s.withTarget(s.setEnabled))
	guarded.PUT("/:token/properties/:name", s.withTarget(s.setProperty))
	guarded.DELETE("/:token/properties/:name", s.withTarget(s.removeProperty))
	guarded.POST("/:token/events", s.withTarget(s.trackEvent))
	guarded.POST("/:token/pause", s.withTarget(func(c *gin.Context, t *target.Target) {
		t.Pause()
		c.JSON(http.StatusOK, gin.H{"token": t.Token(), "paused": true})
	}))
	guarded.POST("/:token/resume", s.withTarget(func(c *gin.Context, t *target.Target) {
		t.Resume()
		c.JSON(http.StatusOK, gin.H{"token": t.Token(), "paused": false})
	}))
}

func (s *Server) withTarget(handler func(*gin.Context, *target.Target)) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.registry.Lookup(c.Param("token"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		handler(c, t)
	}
}

func (s *Server) listTargets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"targets": s.registry.Snapshot()})
}

func (s *Server) exportTargets(c *gin.Context) {
	snapshot := s.registry.Snapshot()
	out := make([]config.TargetConfig, 0, len(snapshot))
	for _, info := range snapshot {
		enabled := info.Enabled
		out = append(out, config.TargetConfig{
			Token:      info.Token,
			Parent:     info.Parent,
			Enabled:    &enabled,
			Properties: info.Properties,
		})
	}
	var buf bytes.Buffer
	if err := config.ExportTargets(&buf, out); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/toml", buf.Bytes())
}

func (s *Server) createTarget(c *gin.Context) {
	var req createTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var parent *target.Target
	if req.Parent != "" {
		p, ok := s.registry.Lookup(req.Parent)
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": target.ErrInvalidHierarchy.Error() + ": unknown parent"})
			return
		}
		parent = p
	}
	t, err := s.registry.GetOrCreate(req.Token, parent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t.Info())
}

func (s *Server) getTarget(c *gin.Context, t *target.Target) {
	c.JSON(http.StatusOK, gin.H{
		"target":               t.Info(),
		"effective_properties": t.EffectiveProperties(),
	})
}

func (s *Server) removeTarget(c *gin.Context) {
	if err := s.registry.Remove(c.Param("token")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setEnabled(c *gin.Context, t *target.Target) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"enabled\": bool}"})
		return
	}
	if err := t.SetEnabled(*req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Info())
}

func (s *Server) setProperty(c *gin.Context, t *target.Target) {
	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := t.SetProperty(c.Param("name"), req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Info())
}

func (s *Server) removeProperty(c *gin.Context, t *target.Target) {
	if err := t.RemoveProperty(c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Info())
}

func (s *Server) trackEvent(c *gin.Context, t *target.Target) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := t.TrackEvent(req.Name, req.Properties)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusAccepted
	if res == target.ResultSuppressed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"token": t.Token(), "event": req.Name, "result": res.String()})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, target.ErrInvalidToken),
		errors.Is(err, target.ErrInvalidEventName),
		errors.Is(err, target.ErrInvalidProperty):
		status = http.StatusBadRequest
	case errors.Is(err, target.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, target.ErrInvalidHierarchy),
		errors.Is(err, target.ErrHasChildren):
		status = http.StatusConflict
	case errors.Is(err, target.ErrRemoved):
		status = http.StatusGone
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
