package router

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dtroode/kurisync/internal/api/http/handler"
	"github.com/dtroode/kurisync/internal/api/http/middleware"
	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/metrics"
)

// Router wires handlers and middleware into a gin engine.
type Router struct {
	handler      *handler.Handler
	tokenService middleware.TokenService
	metrics      *metrics.Metrics
	corsOrigins  []string
	logger       *logger.Logger
}

func New(
	h *handler.Handler,
	tokenService middleware.TokenService,
	m *metrics.Metrics,
	corsOrigins []string,
	logger *logger.Logger,
) *Router {
	return &Router{
		handler:      h,
		tokenService: tokenService,
		metrics:      m,
		corsOrigins:  corsOrigins,
		logger:       logger,
	}
}

func (r *Router) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(r.corsOrigins) == 0 || slices.Contains(r.corsOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = r.corsOrigins
	}
	return cfg
}

// Register builds the engine with every route of the read API.
func (r *Router) Register() *gin.Engine {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.logger)

	e := gin.New()
	e.Use(gin.Recovery(), logging.Handle, cors.New(r.corsConfig()))
	if r.metrics != nil {
		e.Use(middleware.NewMetrics(r.metrics).Handle)
		e.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	e.GET("/", r.handler.Welcome)
	e.GET("/healthz", r.handler.Health)

	api := e.Group("/api")
	{
		api.GET("/sheetData", r.handler.SheetData)
		api.GET("/roscaData", r.handler.RoscaData)
		api.GET("/userData", r.handler.UserData)
		api.GET("/roscaPaymentStatus/:contractAddress/:userAddress", r.handler.PaymentStatus)
		api.GET("/statuses/:contractAddress/:userAddress", r.handler.Status)
		api.GET("/mvp/:walletAddress", r.handler.Overview)
		api.GET("/registry/snapshots/:key", r.handler.Snapshot)

		api.POST("/sync/:job", authenticate.Handle, r.handler.TriggerSync)
	}

	return e
}
