package bootstrap

import (
	"context"
	"fmt"

	"feedback_server/adapter/out/cache"
	"feedback_server/adapter/out/memory"
	"feedback_server/adapter/out/messaging"
	"feedback_server/adapter/out/mongodb"
	"feedback_server/adapter/out/persistence"
	"feedback_server/config"
	"feedback_server/core/agent/llm"
	"feedback_server/core/port/out"
	"feedback_server/core/service/classification"
	"feedback_server/core/service/cluster"
	"feedback_server/core/service/ingest"
	"feedback_server/core/service/problem"
	"feedback_server/infra/database"
	pkgcache "feedback_server/pkg/cache"
	"feedback_server/pkg/logger"
	"feedback_server/pkg/metrics"
	"feedback_server/pkg/snowflake"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies is the wired object graph shared by every run mode.
// Redis and MongoDB are optional; without DATABASE_URL the store is kept in
// memory, which is only meant for local runs.
type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	Store    out.Store
	Archive  out.ReportArchive
	Producer out.ImportProducer

	Classifier *classification.Classifier
	Cluster    *cluster.Store
	Pipeline   *ingest.Pipeline
	Problems   *problem.Service
	Latency    *metrics.Registry
}

func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Latency: metrics.NewRegistry(0)}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Relational store
	if cfg.DatabaseURL != "" {
		pgCfg := database.DefaultPostgresConfig()
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, pgCfg)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		cleanups = append(cleanups, db.Close)

		if err := persistence.EnsureSchema(ctx, db); err != nil {
			return fail(err)
		}

		sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL, pgCfg)
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })

		node, err := snowflake.NewNode(cfg.NodeID)
		if err != nil {
			return fail(fmt.Errorf("id generator: %w", err))
		}
		deps.Store = persistence.NewStore(sqlDB, node)
		logger.Info("PostgreSQL store ready (node %d)", cfg.NodeID)
	} else {
		deps.Store = memory.NewStore()
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	// Redis: classification cache and import stream. The in-process tier
	// serves alone when Redis is absent.
	l1 := pkgcache.NewL1Cache(cfg.ClassifyL1Size, cfg.ClassifyCacheTTL)
	var classifyCache out.ClassificationCache = cache.NewClassificationCache(l1, cfg.ClassifyCacheTTL)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })

			classifyCache = cache.NewClassificationCache(
				pkgcache.NewTiered(l1, pkgcache.NewRedisCache(redisClient, cache.KeyPrefix)),
				cfg.ClassifyCacheTTL,
			)
			deps.Producer = messaging.NewRedisProducer(redisClient, cfg.ImportStream)
			logger.Info("Redis cache and import stream ready")
		}
	}

	// MongoDB: batch report archive
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() { mongoClient.Disconnect(context.Background()) })

			reports := mongodb.NewReportAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := reports.EnsureIndexes(ctx); err != nil {
				logger.Warn("Failed to ensure report indexes: %v", err)
			}
			deps.Archive = reports
		}
	}

	// Classification
	completer, err := llm.NewCompleter(ctx, cfg, logger.Component("llm"))
	if err != nil {
		return fail(fmt.Errorf("llm client: %w", err))
	}
	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		logger.Warn("OPENAI_API_KEY not set, every item will use rule based classification")
	}
	deps.Classifier = classification.NewClassifier(
		llm.NewAnalyzer(completer),
		classifyCache,
		logger.Component("classifier"),
	)

	// Clustering and ingestion
	deps.Cluster = cluster.NewStore(deps.Store, logger.Component("cluster"),
		cluster.WithMatcher(cluster.NewCharOverlapMatcher(cfg.SimilarityThreshold)),
	)

	pipelineCfg := ingest.Config{
		Feedback:    deps.Store.Feedback(),
		Classifier:  deps.Classifier,
		Merger:      deps.Cluster,
		Concurrency: cfg.IngestConcurrency,
		Logger:      logger.Component("ingest"),
	}
	if deps.Archive != nil {
		pipelineCfg.Archive = deps.Archive
	}
	deps.Pipeline = ingest.NewPipeline(pipelineCfg)
	deps.Problems = problem.NewService(deps.Store)

	return deps, cleanup, nil
}

// HealthCheck pings every configured backend.
func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if d.DB != nil {
		if err := d.DB.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if d.MongoDB != nil {
		if err := d.MongoDB.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
	}
	return nil
}
