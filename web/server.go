// Package web serves the chat UI and the REST API of the shopping assistant.
package web

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/agent"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/shopagent/tools/shoptools"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent", "web")

//go:embed static/index.html
var indexHTML []byte

// Agent is the assistant served by the API
type Agent interface {
	Chat(ctx context.Context, sessionID, message string) (*agent.Response, error)
	Cart(ctx context.Context, sessionID string) (*shoptools.CalculateTotalResponse, error)
	Reset(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
	Registry() *tools.Registry
}

var _ Agent = (*agent.Agent)(nil)

// NewRouter returns the gin engine with the routes of the agent
func NewRouter(a Agent) *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(requestLogger())

	h := &handler{agent: a}

	g.GET("/", h.index)
	g.GET("/healthz", h.healthz)

	apiV1 := g.Group("/v1")
	{
		apiV1.GET("/tools", h.listTools)
		apiV1.POST("/chat", h.chat)
		apiV1.GET("/sessions", h.listSessions)
		apiV1.GET("/sessions/:id/cart", h.cart)
		apiV1.DELETE("/sessions/:id", h.reset)
	}
	g.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, errors.Newf("not found: %s", c.Request.URL.Path))
	})
	return g
}

// Serve runs the server until ctx is canceled
func Serve(ctx context.Context, addr string, a Agent) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.KV(xlog.NOTICE, "status", "listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithMessage(err, "failed to serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.KV(xlog.NOTICE, "status", "shutting_down", "addr", addr)
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.ContextKV(c.Request.Context(), xlog.DEBUG,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(started).String(),
		)
	}
}
