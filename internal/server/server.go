package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/handlers"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/metrics"
	"github.com/repurpose-hub/checkout-service/internal/middleware"
)

type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	handlers   *handlers.Handlers
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	logger     *logging.LoggerV2
}

// New builds the router. gatherer backs /metrics and may be nil when
// metrics are disabled.
func New(h *handlers.Handlers, cfg *config.Config, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	router := gin.New()

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		metrics:  m,
		gatherer: gatherer,
		logger:   logging.NewLoggerV2("http"),
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(s.logger))
	router.Use(middleware.Metrics(m))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handlers.Root)
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/version", s.handlers.Version)

	if s.config.Features.EnableMetrics && s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	cart := s.router.Group("/cart")
	{
		cart.POST("/checkout", s.handlers.InitiateCheckout)
		cart.POST("/complete-checkout", s.handlers.CompleteCheckout)
	}

	s.router.GET("/orders/:user_id", s.handlers.GetUserOrders)

	payment := s.router.Group("/payment")
	{
		payment.POST("/create-order", s.handlers.CreatePaymentOrder)
		payment.POST("/verify-payment", s.handlers.VerifyPayment)
		payment.GET("/order-status/:razorpay_order_id", s.handlers.GetOrderStatus)
		payment.GET("/status/:payment_id", s.handlers.GetPaymentStatus)
		payment.GET("/orders/:user_id", s.handlers.GetUserPaymentOrders)
	}

	s.router.GET("/eco-impact/:user_id", s.handlers.GetEcoImpact)
	s.router.GET("/community-impact", s.handlers.GetCommunityImpact)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting server", logging.Fields{"addr": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
