package bootstrap

import (
	"context"
	"strings"
	"time"

	"feedback_server/adapter/in/http"
	"feedback_server/config"
	"feedback_server/infra/database"
	"feedback_server/infra/middleware"
	"feedback_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
)

// NewApp builds the HTTP app over already wired dependencies.
func NewApp(cfg *config.Config, deps *Dependencies) (*fiber.App, error) {
	maxUpload := cfg.MaxUploadSizeMB << 20
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             maxUpload + 1<<20,
		ReadTimeout:           2 * time.Minute,
		ServerHeader:          "",
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(deps.Latency))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := allowOrigins != "" && allowOrigins != "*"
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	health := http.NewHealthHandler(deps.Latency)
	if deps.DB != nil {
		health.WithCheck("postgres", deps.DB.Ping)
		health.WithStats("postgres_pool", func() any { return database.GetPoolStats(deps.DB) })
	}
	if deps.Redis != nil {
		health.WithCheck("redis", func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() })
	}
	if deps.MongoDB != nil {
		health.WithCheck("mongodb", func(ctx context.Context) error { return deps.MongoDB.Ping(ctx, nil) })
	}
	health.Register(app)

	var guards []fiber.Handler
	if cfg.ImportRatePerMin > 0 {
		var scripter redis.Scripter
		if deps.Redis != nil {
			scripter = deps.Redis
		}
		limiter, err := ratelimit.New(scripter, cfg.ImportRatePerMin, time.Minute)
		if err != nil {
			return nil, err
		}
		guards = append(guards, middleware.RateLimit(limiter, "import"))
	}

	http.NewImportHandler(http.ImportHandlerConfig{
		Ingest:    deps.Pipeline,
		Producer:  deps.Producer,
		Archive:   deps.Archive,
		MaxUpload: int64(maxUpload),
	}).Register(app, guards...)
	http.NewProblemHandler(deps.Problems).Register(app)

	return app, nil
}
