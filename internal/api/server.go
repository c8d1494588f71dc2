package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/api/handlers"
	"github.com/kekopoly/monopoly/internal/api/middleware/auth"
	"github.com/kekopoly/monopoly/internal/config"
	"github.com/kekopoly/monopoly/internal/game/websocket"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// CustomValidator is the request validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// RequestMetrics tracks metrics for API requests
type RequestMetrics struct {
	RequestCount map[string]int     `json:"requestCount"`
	DurationSum  map[string]float64 `json:"durationSum"`
	GameActions  map[string]int     `json:"gameActions"`
	mutex        sync.RWMutex
}

// Server represents the API server
type Server struct {
	echo    *echo.Echo
	cfg     *config.Config
	games   handlers.GameService
	wsHub   *websocket.Hub
	health  map[string]handlers.Pinger
	logger  *zap.SugaredLogger
	metrics *RequestMetrics
	cancel  context.CancelFunc
}

// NewServer creates a new API server. health lists the backing services
// reported by /health; nil entries are skipped.
func NewServer(cfg *config.Config, games handlers.GameService, wsHub *websocket.Hub, health map[string]handlers.Pinger, logger *zap.SugaredLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	server := &Server{
		echo:   e,
		cfg:    cfg,
		games:  games,
		wsHub:  wsHub,
		health: health,
		logger: logger,
		metrics: &RequestMetrics{
			RequestCount: make(map[string]int),
			DurationSum:  make(map[string]float64),
			GameActions:  make(map[string]int),
		},
	}

	server.configureMiddleware()
	server.configureRoutes()
	return server
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) configureMiddleware() {
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(s.metricsMiddleware)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.Set("requestID", requestID)
			c.Set("logger", s.logger.With(
				"requestID", requestID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"clientIP", c.RealIP(),
			))
			return next(c)
		}
	})
}

// metricsMiddleware records metrics for each request. Routes are keyed by
// their pattern so chat ids do not explode the maps.
func (s *Server) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		route := c.Path()
		status := c.Response().Status
		if httpErr, ok := err.(*echo.HTTPError); ok {
			status = httpErr.Code
		}
		key := c.Request().Method + ":" + route + ":" + strconv.Itoa(status)

		s.metrics.mutex.Lock()
		s.metrics.RequestCount[key]++
		s.metrics.DurationSum[key] += time.Since(start).Seconds()
		if strings.HasPrefix(route, "/api/v1/chats/") && err == nil {
			s.metrics.GameActions[route[strings.LastIndex(route, "/")+1:]]++
		}
		s.metrics.mutex.Unlock()

		return err
	}
}

func (s *Server) configureRoutes() {
	gameHandler := handlers.NewGameHandler(s.games, s.logger)
	wsHandler := handlers.NewWebSocketHandler(s.wsHub, s.cfg.JWT.Secret, s.logger)
	healthHandler := handlers.NewHealthHandler(s.health, s.wsHub, Version, s.logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	wsHandler.StartPingPongMonitor(ctx)

	jwtMiddleware := auth.JWTMiddleware(s.cfg.JWT.Secret)

	s.echo.GET("/api/v1/help", gameHandler.Help)

	chat := s.echo.Group("/api/v1/chats/:chatId", jwtMiddleware)
	chat.POST("/enter", gameHandler.Enter)
	chat.POST("/begin", gameHandler.Begin)
	chat.POST("/roll", gameHandler.Roll)
	chat.POST("/buy", gameHandler.Buy)
	chat.POST("/auction", gameHandler.Auction)
	chat.POST("/bid", gameHandler.Bid)
	chat.POST("/rent", gameHandler.Rent)
	chat.POST("/build", gameHandler.Build)
	chat.POST("/reset", gameHandler.Reset)
	chat.GET("/status", gameHandler.Status)
	chat.GET("/state", gameHandler.State)
	chat.GET("/players/:userId/position", gameHandler.Position)

	// The token usually arrives as a query parameter since browsers cannot
	// set headers on WebSocket requests
	s.echo.GET("/ws/:chatId", wsHandler.HandleConnection)

	s.echo.GET("/health", healthHandler.Check)
	s.echo.GET("/health/detailed", healthHandler.DetailedCheck)

	s.echo.GET("/metrics", func(c echo.Context) error {
		s.metrics.mutex.RLock()
		defer s.metrics.mutex.RUnlock()
		return c.JSON(http.StatusOK, s.metrics)
	})
}

// Start starts the API server
func (s *Server) Start() error {
	address := s.cfg.Server.Host + ":" + strconv.Itoa(s.cfg.Server.Port)
	s.echo.Server.ReadTimeout = time.Duration(s.cfg.Server.ReadTimeout) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.cfg.Server.WriteTimeout) * time.Second
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.echo.Shutdown(ctx)
}
