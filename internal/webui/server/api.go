package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cookterm/internal/capture"
	"cookterm/internal/host"
	appver "cookterm/internal/version"
)

func (s *Server) mountAPI(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": appver.AppVersion})
	})

	api.GET("/state", s.stateHandler)
	api.GET("/screen", s.screenHandler)

	api.GET("/history", s.historyHandler)
	api.DELETE("/history", s.historyClearHandler)
	api.DELETE("/history/:id", s.historyDismissHandler)
	api.GET("/history/last", s.mostRecentHandler)

	api.POST("/run", s.runHandler)
	api.GET("/check/:binary", checkBinaryHandler)
	api.GET("/docs", s.docsHandler)

	api.GET("/term/ws", s.terminalWSHandler)
}

func errJSON(err error) gin.H { return gin.H{"error": err.Error()} }

func (s *Server) stateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":   s.Session.Snapshot(),
		"last":    s.Session.LastCommandClean(),
		"running": s.Session.History().Running(),
	})
}

func (s *Server) screenHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lines": s.Session.Screen()})
}

func (s *Server) historyHandler(c *gin.Context) {
	h := s.Session.History()
	c.JSON(http.StatusOK, gin.H{
		"entries":      h.Entries(),
		"running":      h.Running(),
		"latestPrompt": h.LatestPrompt(),
	})
}

func (s *Server) historyClearHandler(c *gin.Context) {
	s.Session.History().Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) historyDismissHandler(c *gin.Context) {
	if !s.Session.History().Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such entry"})
		return
	}
	c.Status(http.StatusNoContent)
}

// mostRecentHandler reports the latest execution of ?command=.
func (s *Server) mostRecentHandler(c *gin.Context) {
	cmd := c.Query("command")
	if strings.TrimSpace(cmd) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}
	r := s.Session.History().MostRecent(cmd)
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "never run"})
		return
	}
	c.JSON(http.StatusOK, r)
}

type runRequest struct {
	Command string `json:"command"`
	// Mode "send" runs without capturing; "paste" only types the text.
	Mode string `json:"mode"`
}

func (s *Server) runHandler(c *gin.Context) {
	var in runRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errJSON(err))
		return
	}
	if strings.TrimSpace(in.Command) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	switch in.Mode {
	case "send":
		if err := s.Session.Send(in.Command); err != nil {
			c.JSON(http.StatusBadGateway, errJSON(err))
			return
		}
		c.Status(http.StatusAccepted)
		return
	case "paste":
		if err := s.Session.Paste(in.Command); err != nil {
			c.JSON(http.StatusBadGateway, errJSON(err))
			return
		}
		c.Status(http.StatusAccepted)
		return
	case "", "capture":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode " + in.Mode})
		return
	}

	res, err := s.Session.Run(c.Request.Context(), in.Command)
	switch {
	case errors.Is(err, capture.ErrPending):
		c.JSON(http.StatusConflict, errJSON(err))
	case err != nil && c.Request.Context().Err() != nil:
		// client went away; the capture stays pending until the shell reports
		s.log().Debug("run abandoned by client", "command", in.Command)
	case err != nil:
		c.JSON(http.StatusBadGateway, errJSON(err))
	default:
		c.JSON(http.StatusOK, res)
	}
}

func checkBinaryHandler(c *gin.Context) {
	name := c.Param("binary")
	ok, err := host.BinaryExists(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, errJSON(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"binary": strings.TrimSpace(name), "exists": ok})
}

func (s *Server) docsHandler(c *gin.Context) {
	if s.Docs == nil {
		c.JSON(http.StatusOK, gin.H{"docs": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docs": s.Docs.Docs()})
}
