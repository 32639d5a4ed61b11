// Package api is the HTTP surface: the SSE chat stream, cluster
// prediction, analytics visits, report generation, and the voice
// endpoints. Handlers translate between HTTP and the agent's typed
// events; no business logic lives here.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/civicpulse/civicpulse/pkg/agent"
	"github.com/civicpulse/civicpulse/pkg/cluster"
	"github.com/civicpulse/civicpulse/pkg/report"
	"github.com/civicpulse/civicpulse/pkg/voice"
)

// Deps are the shared components the handlers serve.
type Deps struct {
	Orchestrator *agent.Orchestrator
	Predictor    *cluster.Predictor // nil when centroid storage is absent
	Voice        voice.Client       // nil when VOICE_API_KEY is absent
	Report       *report.Builder
	Logger       *slog.Logger
}

// Server wraps the HTTP listener around the gin router.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(port string, frontendOrigin string, deps Deps) *Server {
	h := &handlers{deps: deps, logger: deps.Logger.With("component", "api")}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(h.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{frontendOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", h.root)
	router.GET("/health", h.health)

	chat := router.Group("/api/chat")
	{
		chat.POST("/stream", h.chatStream)
		chat.POST("", h.chat)
		chat.POST("/analytics-visit", h.analyticsVisit)
	}
	router.POST("/api/cluster/predict", h.clusterPredict)
	router.POST("/api/report/generate", h.reportGenerate)

	vc := router.Group("/api/voice", h.requireVoice)
	{
		vc.POST("/tts", h.tts)
		vc.POST("/tts/stream", h.ttsStream)
		vc.POST("/tts/with-timestamps", h.ttsWithTimestamps)
		vc.POST("/stt", h.stt)
		vc.POST("/stt/stream", h.sttStream)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: deps.Logger.With("component", "api"),
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
