package studio

import (
	"context"
	"net/http"
	"time"

	"github.com/Fl0rencess720/inkwell/pkg/content"
	"github.com/Fl0rencess720/inkwell/pkg/studio/config"
	"github.com/Fl0rencess720/inkwell/pkg/studio/handlers"
	"github.com/Fl0rencess720/inkwell/pkg/studio/handlers/mcp"
	"github.com/Fl0rencess720/inkwell/pkg/studio/pkgs/metrics"
	ginZap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg *config.Config, ws *content.Workspace) (*Server, error) {
	e := gin.New()
	e.Use(tracingMiddleware(), metrics.Middleware())
	e.Use(ginZap.Ginzap(zap.L(), time.RFC3339, true), ginZap.RecoveryWithZap(zap.L(), true))

	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	e.GET("/metrics", gin.WrapH(metrics.Handler()))

	app := e.Group("/api")
	{
		handlers.InitContentApi(app, ws)
	}

	if cfg.MCPEnabled {
		e.Any("/mcp", gin.WrapH(mcp.NewMCPHandler(e)))
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpServer}, nil
}

func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Server shutdown error", zap.Error(err))
		}
	}()

	zap.S().Infof("Inkwell server listening on %s", s.httpServer.Addr)

	return s.httpServer.ListenAndServe()
}
