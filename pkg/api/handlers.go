package api

import (
	"net/http"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/network"
	"github.com/ZentaChain/zentalk-chat/pkg/storage"
	"github.com/gin-gonic/gin"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// StatsResponse is returned by /api/v1/stats
type StatsResponse struct {
	Server  network.ServerStats `json:"server"`
	Storage storage.Stats       `json:"storage"`
}

// SessionsResponse is returned by /api/v1/sessions
type SessionsResponse struct {
	Count    int                   `json:"count"`
	Sessions []network.SessionInfo `json:"sessions"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	var resp StatsResponse
	if s.sessions != nil {
		resp.Server = s.sessions.Stats()
	}

	if s.store != nil {
		st, err := s.store.Stats()
		if err != nil {
			s.log.Warningf("Failed to read storage stats: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "Storage unavailable",
				Message: err.Error(),
			})
			return
		}
		resp.Storage = st
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions := []network.SessionInfo{}
	if s.sessions != nil {
		sessions = s.sessions.Sessions()
	}

	c.JSON(http.StatusOK, SessionsResponse{Count: len(sessions), Sessions: sessions})
}
