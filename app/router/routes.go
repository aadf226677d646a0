// Package router provides HTTP routing, middleware configuration, and server setup for the calculation API
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	"github.com/amirphl/ecoestudiante-calc/app/handlers"
	"github.com/amirphl/ecoestudiante-calc/app/middleware"
	"github.com/amirphl/ecoestudiante-calc/config"
	"github.com/amirphl/ecoestudiante-calc/utils"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
)

// HealthProbe reports whether a dependency is usable.
type HealthProbe func(ctx context.Context) error

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	logger         zerolog.Logger
	calcHandler    handlers.CalcHandlerInterface
	factorHandler  handlers.FactorHandlerInterface
	authMiddleware *middleware.AuthMiddleware
	probe          HealthProbe
}

// NewFiberRouter creates a new Fiber router. probe may be nil.
func NewFiberRouter(
	cfg *config.ProductionConfig,
	logger zerolog.Logger,
	calcHandler handlers.CalcHandlerInterface,
	factorHandler handlers.FactorHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	probe HealthProbe,
) *FiberRouter {
	r := &FiberRouter{
		cfg:            cfg,
		logger:         logger.With().Str("component", "http").Logger(),
		calcHandler:    calcHandler,
		factorHandler:  factorHandler,
		authMiddleware: authMiddleware,
		probe:          probe,
	}

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1 * 1024 * 1024
	}

	fiberCfg := fiber.Config{
		AppName:      "EcoEstudiante Calc API",
		ServerHeader: "ecoestudiante-calc",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	}

	// The proxy header is honored only from trusted hops
	if len(cfg.Server.TrustedProxies) > 0 {
		fiberCfg.TrustProxy = true
		fiberCfg.TrustProxyConfig = fiber.TrustProxyConfig{Proxies: cfg.Server.TrustedProxies}
		fiberCfg.ProxyHeader = cfg.Server.ProxyHeader
	}

	r.app = fiber.New(fiberCfg)
	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	r.app.Get("/health", r.healthCheck)

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.metricsPath(), adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	if env := r.cfg.Deployment.Environment; env == "development" || env == "local" {
		api.Get("/swagger.json", r.serveSwaggerJSON)
	}

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) string {
		return c.IP()
	}, func(c fiber.Ctx) bool {
		return c.Path() == "/api/v1/health"
	}))

	calc := api.Group("/calc", r.authMiddleware.Authenticate())
	calcLimit := r.rateLimiter(r.cfg.Security.CalcRateLimit, func(c fiber.Ctx) string {
		if userID, ok := middleware.GetUserIDFromContext(c); ok {
			return "user:" + userID
		}
		return c.IP()
	}, nil)
	calc.Post("/electricity", calcLimit, r.calcHandler.ComputeElectricity)
	calc.Post("/transport", calcLimit, r.calcHandler.ComputeTransport)
	calc.Get("/history", r.calcHandler.History)
	calc.Get("/history/export", r.calcHandler.ExportHistory)

	factors := api.Group("/factors")
	factors.Get("/resolve", r.factorHandler.Resolve)

	r.app.Use(r.notFoundHandler)
}

func (r *FiberRouter) metricsPath() string {
	if r.cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return r.cfg.Metrics.Path
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error().
				Str("request_id", requestid.FromContext(c)).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Interface("panic", e).
				Msg("recovered from panic")
		},
	}))

	sec := r.cfg.Security
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: sec.XContentTypeOptions,
		XFrameOptions:      sec.XFrameOptions,
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     sec.ReferrerPolicy,
	}))

	allowCredentials := sec.AllowCredentials && !slices.Contains(sec.AllowedOrigins, "*")
	maxAge := sec.CORSMaxAge
	if maxAge <= 0 {
		maxAge = utils.CORSMaxAge
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     sec.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// xlsx is already zipped
				return strings.HasSuffix(c.Path(), "/export")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/health" || c.Path() == "/api/v1/health" || c.Path() == r.metricsPath()
			},
		}))
	}

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics(r.metricsPath()))
	}
}

// rateLimiter builds a per-key limiter over the configured window. limit <= 0 disables it.
func (r *FiberRouter) rateLimiter(limit int, key func(fiber.Ctx) string, skip func(fiber.Ctx) bool) fiber.Handler {
	if limit <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:          limit,
		Expiration:   window,
		KeyGenerator: key,
		Next:         skip,
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info().Str("address", address).Msg("starting server")
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	data := fiber.Map{
		"status":    "ok",
		"timestamp": utils.UTCNow().Unix(),
		"version":   r.cfg.Deployment.Version,
		"commit":    r.cfg.Deployment.CommitHash,
		"built_at":  r.cfg.Deployment.BuildTime,
		"service":   "ecoestudiante-calc",
	}

	if r.probe != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.probe(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("health probe failed")
			data["status"] = "degraded"
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
				Success: false,
				Message: "Service is unavailable",
				Data:    data,
				Error:   dto.ErrorDetail{Code: "DEPENDENCY_UNAVAILABLE"},
			})
		}
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}

// Serve the registered OpenAPI document
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(doc)
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	requestID := requestid.FromContext(c)
	if code >= fiber.StatusInternalServerError {
		r.logger.Error().Err(err).Int("status", code).Str("request_id", requestID).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
