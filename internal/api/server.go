package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"minute/internal/board"
	"minute/internal/catalog"
	"minute/internal/monitoring"
	"minute/internal/ordering"
	"minute/internal/storage"
)

// Server holds the HTTP surface of the cafeteria.
type Server struct {
	router     *gin.Engine
	orders     *ordering.Lifecycle
	catalog    *catalog.Service
	store      storage.Store
	board      *board.Hub
	monitor    *monitoring.Monitor
	logger     *zap.Logger
	now        func() time.Time
	allowReset bool
}

// Option configures a Server.
type Option func(*Server)

// WithBoard serves the live kitchen board at GET /orders/board.
func WithBoard(hub *board.Hub) Option {
	return func(s *Server) { s.board = hub }
}

// WithMonitor records request metrics.
func WithMonitor(m *monitoring.Monitor) Option {
	return func(s *Server) { s.monitor = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock sets the clock used when reseeding.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithReset exposes POST /admin/reset-db, which wipes and reseeds the store.
func WithReset(allow bool) Option {
	return func(s *Server) { s.allowReset = allow }
}

// NewServer creates the API and registers its routes.
func NewServer(orders *ordering.Lifecycle, cat *catalog.Service, store storage.Store, opts ...Option) *Server {
	s := &Server{
		orders:  orders,
		catalog: cat,
		store:   store,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(requestLogger(s.logger), recovery(s.logger))
	if s.monitor != nil {
		s.router.Use(s.monitor.Middleware())
	}
	s.setupRoutes()
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	foods := s.router.Group("/foods")
	{
		foods.POST("", s.CreateFood)
		foods.GET("", s.ListFoods)
		foods.GET("/:id", s.GetFood)
		foods.PUT("/:id", s.UpdateFood)
		foods.PUT("/:id/deactivate", s.DeactivateFood)
	}

	menu := s.router.Group("/menu-items")
	{
		menu.POST("", s.CreateMenuItem)
		menu.GET("", s.ListMenuItems)
		menu.GET("/today", s.TodayMenu)
		menu.PUT("/:id", s.UpdateMenuItem)
		menu.DELETE("/:id", s.DeleteMenuItem)
	}

	orders := s.router.Group("/orders")
	{
		orders.POST("", s.CreateOrder)
		orders.GET("", s.ListOrders)
		orders.GET("/open", s.OpenOrders)
		orders.GET("/:id", s.GetOrder)
		orders.PUT("/:id/status", s.UpdateOrderStatus)
		if s.board != nil {
			orders.GET("/board", s.board.ServeWS)
		}
	}

	if s.allowReset {
		s.router.POST("/admin/reset-db", s.ResetDB)
	}
}
