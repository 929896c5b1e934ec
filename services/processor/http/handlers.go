package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(c *gin.Context) {
	checks := map[string]string{}
	healthy := true
	for name, p := range map[string]Pinger{"mongo": s.deps.Mongo, "postgres": s.deps.Postgres} {
		if err := s.ping(c.Request.Context(), p); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (s *Server) handlePing(name string, p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.ping(c.Request.Context(), p); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "store": name, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": name})
	}
}

func (s *Server) ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return errNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}

func (s *Server) handleSync(c *gin.Context) {
	if s.deps.Syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNotConfigured.Error()})
		return
	}

	// A disconnecting client must not abort a pass halfway through its deletes.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.cfg.RequestTimeout)
	defer cancel()

	summary, err := s.deps.Syncer.Run(ctx)
	if err != nil {
		s.logger.Warn("manual sync finished with errors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (s *Server) handleSyncStatus(c *gin.Context) {
	body := gin.H{"watcher": gin.H{"enabled": false}}
	if s.deps.State != nil {
		run, feed := s.deps.State.State()
		body["watcher"] = gin.H{"enabled": true, "run_state": run, "feed_state": feed}
	}
	if s.deps.Syncer != nil {
		body["last_run"] = s.deps.Syncer.LastSummary()
	}
	c.JSON(http.StatusOK, body)
}
