// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/dto"
	"github.com/amirphl/outreach-orchestrator/app/handlers"
	"github.com/amirphl/outreach-orchestrator/app/middleware"
	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/docs"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/swaggo/swag"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown() error
	GetApp() *fiber.App
}

// Handlers groups every API handler the router mounts
type Handlers struct {
	Campaign  handlers.CampaignHandlerInterface
	Sequence  handlers.SequenceHandlerInterface
	Lead      handlers.LeadHandlerInterface
	Approval  handlers.ApprovalHandlerInterface
	ScrapeJob *handlers.ScrapeJobHandler
	Activity  *handlers.ActivityHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	server   config.ServerConfig
	metrics  config.MetricsConfig
	deploy   config.DeploymentConfig
	logger   logrus.FieldLogger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, cfg *config.ProductionConfig, logger logrus.FieldLogger) Router {
	r := &FiberRouter{
		handlers: h,
		server:   cfg.Server,
		metrics:  cfg.Metrics,
		deploy:   cfg.Deployment,
		logger:   logger,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Outreach Orchestrator API",
		ServerHeader: "outreach-orchestrator",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.metrics.Enabled {
		r.app.Get(r.metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	api.Get("/health", r.healthCheck)
	api.Get("/swagger.json", r.serveSwaggerJSON)

	api.Use(limiter.New(limiter.Config{
		Max:        r.server.GlobalRateLimit,
		Expiration: r.server.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", r.handlers.Campaign.CreateCampaign)
	campaigns.Get("/:id", r.handlers.Campaign.GetCampaign)
	campaigns.Post("/:id/launch", r.handlers.Campaign.LaunchCampaign)
	campaigns.Post("/:id/pause", r.handlers.Campaign.PauseCampaign)
	campaigns.Post("/:id/resume", r.handlers.Campaign.ResumeCampaign)
	campaigns.Post("/:id/leads", r.handlers.Campaign.AddLeads)
	campaigns.Get("/:id/steps", r.handlers.Sequence.ListSteps)
	campaigns.Post("/:id/steps", r.handlers.Sequence.AddStep)
	campaigns.Delete("/:id/steps/:stepId", r.handlers.Sequence.RemoveStep)

	leads := api.Group("/campaign-leads")
	leads.Post("/:id/retry", r.handlers.Lead.RetryLead)
	leads.Post("/:id/skip", r.handlers.Lead.SkipStep)
	leads.Post("/:id/pause", r.handlers.Lead.PauseLead)
	leads.Post("/:id/resume", r.handlers.Lead.ResumeLead)

	approvals := api.Group("/approvals")
	approvals.Get("/", r.handlers.Approval.ListApprovals)
	approvals.Post("/bulk-approve", r.handlers.Approval.BulkApprove)
	approvals.Post("/bulk-reject", r.handlers.Approval.BulkReject)
	approvals.Post("/bulk-personalize", r.handlers.Approval.BulkPersonalize)
	approvals.Get("/:id", r.handlers.Approval.GetApprovalStatus)
	approvals.Put("/:id/content", r.handlers.Approval.EditContent)
	approvals.Post("/:id/regenerate", r.handlers.Approval.Regenerate)
	approvals.Post("/:id/approve", r.handlers.Approval.Approve)
	approvals.Post("/:id/reject", r.handlers.Approval.Reject)

	api.Post("/scrape-jobs", r.handlers.ScrapeJob.StartOrCancel)
	api.Get("/scrape-jobs/:id", r.handlers.ScrapeJob.Poll)

	api.Get("/activity", r.handlers.Activity.ListActivity)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.WithFields(logrus.Fields{
				"request_id": requestid.FromContext(c),
				"event":      "panic",
				"error":      e,
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Error("Recovered from panic")
		},
	}))

	if r.metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginResourcePolicy: "cross-origin",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.server.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		MaxAge: utils.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	r.app.Use(r.accessLog)
}

// accessLog writes one structured line per request
func (r *FiberRouter) accessLog(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if c.Path() == "/api/v1/health" || c.Path() == r.metrics.Path {
		return err
	}

	entry := r.logger.WithFields(logrus.Fields{
		"request_id": requestid.FromContext(c),
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     c.Response().StatusCode(),
		"latency_ms": time.Since(start).Milliseconds(),
		"ip":         c.IP(),
		"user_agent": c.Get("User-Agent"),
	})
	if c.Response().StatusCode() >= fiber.StatusInternalServerError {
		entry.Warn("HTTP request")
	} else {
		entry.Info("HTTP request")
	}
	return err
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.WithField("address", address).Info("Starting HTTP server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the HTTP server, waiting for in-flight requests up to the configured timeout
func (r *FiberRouter) Shutdown() error {
	return r.app.ShutdownWithTimeout(r.server.ShutdownTimeout)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":     "ok",
			"timestamp":  utils.UTCNow().Unix(),
			"version":    r.deploy.Version,
			"commit":     r.deploy.CommitHash,
			"build_time": r.deploy.BuildTime,
			"service":    "outreach-orchestrator",
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set("Content-Type", "application/json")
	return c.SendString(doc)
}

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

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.WithError(err).WithField("request_id", requestid.FromContext(c)).Error("Unhandled error")
		utils.CaptureError(err, map[string]string{"path": c.Path()})
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
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
