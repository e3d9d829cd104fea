// Package server exposes a running shell session over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"cookterm/internal/docs"
	"cookterm/internal/session"
	"cookterm/internal/system"
	webembed "cookterm/internal/webui/embed"
)

type Server struct {
	Addr    string
	Session *session.Session
	// Docs is optional; /api/docs is empty without it.
	Docs *docs.Library
	Log  *clog.Logger
}

func (s *Server) log() *clog.Logger { return system.Or(s.Log).WithPrefix("server") }

// Handler builds the gin engine serving the API and the embedded UI.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(requestLogger(s.log()))
	r.Use(gin.Recovery())

	s.mountAPI(r)
	mountEmbeddedUIGin(r)
	return r
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	s.log().Info("server listening", "addr", s.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs requests through the app logger instead of gin's
// default writer.
func requestLogger(log *clog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// OpenBrowser tries to open a URL in the system browser.
func OpenBrowser(url string) error {
	var cmd string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}
	return runCmd(cmd, args...)
}

// mountEmbeddedUIGin serves embedded SPA at all non-/api GET routes with index fallback.
func mountEmbeddedUIGin(r *gin.Engine) {
	dist, err := fs.Sub(webembed.DistFS, "dist")
	if err != nil {
		r.NoRoute(func(c *gin.Context) {
			if isAPI(c.Request.URL.Path) {
				c.Status(http.StatusNotFound)
				return
			}
			c.String(http.StatusNotFound, "webui assets not found")
		})
		return
	}
	httpFS := http.FS(dist)
	r.NoRoute(func(c *gin.Context) {
		if isAPI(c.Request.URL.Path) {
			c.Status(http.StatusNotFound)
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}
		p := strings.TrimPrefix(c.Request.URL.Path, "/")
		if p != "" && p != "index.html" {
			if f, err := httpFS.Open(p); err == nil {
				_ = f.Close()
				if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
					c.Header("Content-Type", ct)
				}
				c.FileFromFS(p, httpFS)
				return
			}
		}
		// index.html is written directly; http.FileServer would redirect it to "./".
		index, err := fs.ReadFile(dist, "index.html")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.String(http.StatusNotFound, "index.html not found in embedded dist.")
				return
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
}

func isAPI(p string) bool { return strings.HasPrefix(p, "/api/") || p == "/api" }
