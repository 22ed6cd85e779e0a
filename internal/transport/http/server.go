// Package http serves the engine over a gin router for long-running
// deployments. Wire shapes and error mapping are shared with the Lambda
// handler.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"assistant-engine/handler"
)

const (
	correlationHeader     = "X-Correlation-Id"
	defaultMaxUploadBytes = 20 << 20
)

type Options struct {
	// Mode is a gin mode: debug, release or test.
	Mode           string
	MaxUploadBytes int64
}

type Server struct {
	svc       handler.Services
	log       *zap.Logger
	maxUpload int64
}

// NewRouter builds the engine's routes. Optional services that are nil do
// not get routes.
func NewRouter(svc handler.Services, opts Options, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{svc: svc, log: log, maxUpload: maxUpload}

	router := gin.New()
	router.MaxMultipartMemory = maxUpload
	router.Use(correlation(), requestLogger(log), gin.Recovery())

	router.GET("/healthz", s.health)
	router.GET("/reports/:token", s.report)

	api := router.Group("/api")
	api.POST("/chat", s.chat)
	if svc.Ingest != nil {
		api.POST("/ingest", s.ingest)
	}
	if svc.Ask != nil {
		api.POST("/ask", s.ask)
	}
	if svc.Contact != nil {
		api.POST("/contact", s.contact)
	}
	if svc.Sessions != nil {
		chats := api.Group("/chats")
		chats.GET("", s.listSessions)
		chats.DELETE("", s.deleteAllSessions)
		chats.POST("/archive", s.archiveAll)
		chats.GET("/:id", s.getSession)
		chats.PATCH("/:id", s.renameSession)
		chats.DELETE("/:id", s.deleteSession)
		api.DELETE("/index", s.purgeIndex)
	}
	return router
}

func correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationHeader, id)
		c.Header(correlationHeader, id)
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("correlation_id", c.GetString(correlationHeader)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			log.Error("request failed", fields...)
			return
		}
		log.Info("request served", fields...)
	}
}
