package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/polymicro/manager/pkg/eventbus"
	"github.com/polymicro/manager/pkg/persistence"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/polymicro/manager/pkg/services"
	"github.com/polymicro/manager/pkg/web"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	options     services.Options
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	gridSize float64,
	tracer trace.Tracer,
) *API {
	opts := services.Options{Logger: logger, Tracer: tracer}
	opts.Editor.GridSize = gridSize

	if eventBus != nil {
		opts.Publisher = eventBus
	}

	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		options:     opts,
	}
}

func (a *API) App() *fiber.App {
	pipelineService := services.NewPipeline(a.persistence, a.registry, a.options)
	handlers := web.NewAPIHandlers(pipelineService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Poly Micro Manager API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
