// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes a read-only status HTTP API for inspecting the
// running guard: build information, feature toggles and the active
// provider overrides.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/replyguard/internal/buildinfo"
	"github.com/traylinx/replyguard/internal/config"
	"github.com/traylinx/replyguard/internal/guard"
)

// Server serves the status endpoints. It is read-only; nothing it does
// can mutate guard state.
type Server struct {
	store   *config.Store
	guard   *guard.Guard
	engine  *gin.Engine
	srv     *http.Server
	started time.Time
}

// NewServer builds the status server around a guard instance.
func NewServer(store *config.Store, g *guard.Guard) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		store:   store,
		guard:   g,
		engine:  engine,
		started: time.Now(),
	}

	engine.GET("/v1/status", s.statusHandler)
	engine.GET("/v1/overrides", s.overridesHandler)
	return s
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) statusHandler(c *gin.Context) {
	cfg := s.store.Current()
	c.JSON(http.StatusOK, gin.H{
		"version":        buildinfo.Version,
		"commit":         buildinfo.Commit,
		"build_date":     buildinfo.BuildDate,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"features": gin.H{
			"block_error_messages":  cfg.BlockErrorMessages,
			"notify_admin":          cfg.NotifyAdmin,
			"enable_ai_explanation": cfg.EnableAIExplanation,
			"switch_on_keyword":     cfg.SwitchOnKeywordEnable,
			"switch_provider_id":    cfg.SwitchProviderID,
		},
	})
}

func (s *Server) overridesHandler(c *gin.Context) {
	overrides := s.guard.ActiveOverrides()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(overrides),
		"overrides": overrides,
	})
}

// Start begins listening on the given port in the background. A bind
// failure is logged, never fatal to the guard.
func (s *Server) Start(port int) {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.engine,
	}
	go func() {
		log.Infof("Status API listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Status API server error: %v", err)
		}
	}()
}

// Shutdown stops the status server.
func (s *Server) Shutdown(ctx context.Context) {
	if s.srv != nil {
		_ = s.srv.Shutdown(ctx)
	}
}
