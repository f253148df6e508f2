package main

import (
	"context"
	"fmt"
	"os"

	"github.com/oriadata/orgmaster/internal/clients/redis"
	dataagg "github.com/oriadata/orgmaster/internal/data/aggregates"
	"github.com/oriadata/orgmaster/internal/data/db"
	"github.com/oriadata/orgmaster/internal/data/graph"
	"github.com/oriadata/orgmaster/internal/data/repos"
	httpserver "github.com/oriadata/orgmaster/internal/http"
	httpH "github.com/oriadata/orgmaster/internal/http/handlers"
	httpMW "github.com/oriadata/orgmaster/internal/http/middleware"
	"github.com/oriadata/orgmaster/internal/observability"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
	"github.com/oriadata/orgmaster/internal/platform/neo4jdb"
	"github.com/oriadata/orgmaster/internal/services"
	"github.com/oriadata/orgmaster/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "orgmaster",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "", log),
	})
	if shutdownOtel != nil {
		defer func() { _ = shutdownOtel(context.Background()) }()
	}

	// Metrics
	metrics := observability.NewMetricsFromEnv()
	metrics.StartServer(ctx, log, utils.GetEnv("METRICS_ADDR", "", log))

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "", log)
	ingestParallelism := utils.GetEnvAsInt("INGEST_PARALLELISM", 4, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()
	if err := db.AutoMigrateAll(thePG); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	if err := db.EnsureIndexes(thePG); err != nil {
		log.Error("Postgres index setup failed", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up repos from main...")
	sourceRepo := repos.NewSourceRepo(thePG, log)
	schemeRepo := repos.NewSchemeRepo(thePG, log)
	relTypeRepo := repos.NewRelationshipTypeRepo(thePG, log)
	postcodeRepo := repos.NewPostcodeRepo(thePG, log)
	orgRepo := repos.NewOrgRepo(thePG, log)
	aliasRepo := repos.NewAliasRepo(thePG, log)
	relationshipRepo := repos.NewRelationshipRepo(thePG, log)
	correlationRepo := repos.NewCorrelationRepo(thePG, log)
	locationRepo := repos.NewLocationRepo(thePG, log)
	mergeEventRepo := repos.NewMergeEventRepo(thePG, log)
	ingestRepo := repos.NewIngestRepo(thePG, log)

	// Resolve cache (optional)
	resolveCache, err := redis.NewResolveCache(log)
	if err != nil {
		log.Warn("Resolve cache init failed, continuing without it", "error", err)
		resolveCache = nil
	}
	if resolveCache != nil {
		defer func() { _ = resolveCache.Close() }()
	}

	// Graph projection (optional)
	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j init failed, continuing without graph projection", "error", err)
		neoClient = nil
	}
	if neoClient != nil {
		defer func() { _ = neoClient.Close(context.Background()) }()
	}
	projector := graph.NewProjector(neoClient, log)

	// Aggregates
	log.Info("Setting up aggregates from main...")
	base := dataagg.BaseDeps{DB: thePG, Log: log, Hooks: metrics}
	orgAgg := dataagg.NewOrgAggregate(dataagg.OrgAggregateDeps{
		Base:          base,
		Orgs:          orgRepo,
		Aliases:       aliasRepo,
		Relationships: relationshipRepo,
		Correlations:  correlationRepo,
		Locations:     locationRepo,
		MergeEvents:   mergeEventRepo,
		Invalidator:   resolveCache,
		Graph:         projector,
	})
	aliasAgg := dataagg.NewAliasAggregate(dataagg.AliasAggregateDeps{
		Base:    base,
		Orgs:    orgRepo,
		Aliases: aliasRepo,
	})
	relationshipAgg := dataagg.NewRelationshipAggregate(dataagg.RelationshipAggregateDeps{
		Base:          base,
		Orgs:          orgRepo,
		Relationships: relationshipRepo,
		RelTypes:      relTypeRepo,
		Graph:         projector,
	})
	correlationAgg := dataagg.NewCorrelationAggregate(dataagg.CorrelationAggregateDeps{
		Base:         base,
		Orgs:         orgRepo,
		Correlations: correlationRepo,
		Schemes:      schemeRepo,
		Cache:        resolveCache,
	})
	locationAgg := dataagg.NewLocationAggregate(dataagg.LocationAggregateDeps{
		Base:      base,
		Orgs:      orgRepo,
		Locations: locationRepo,
		Postcodes: postcodeRepo,
	})

	// Services
	log.Info("Setting up services from main...")
	registryService := services.NewRegistryService(thePG, log, sourceRepo, schemeRepo, relTypeRepo, postcodeRepo)
	reportingService := services.NewReportingService(
		thePG,
		log,
		resolveCache,
		orgRepo,
		aliasRepo,
		relationshipRepo,
		correlationRepo,
		locationRepo,
		mergeEventRepo,
		relTypeRepo,
	)
	ingestService := services.NewIngestService(
		thePG,
		log,
		metrics,
		ingestParallelism,
		sourceRepo,
		schemeRepo,
		ingestRepo,
		correlationRepo,
		orgAgg,
		aliasAgg,
		correlationAgg,
		locationAgg,
	)

	if seedFile := utils.GetEnv("SEED_FILE", "", log); seedFile != "" {
		if err := registryService.SeedFromFile(ctx, seedFile); err != nil {
			log.Error("Registry seed failed", "path", seedFile, "error", err)
			os.Exit(1)
		}
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	healthHandler := httpH.NewHealthHandler(thePG)
	registryHandler := httpH.NewRegistryHandler(registryService)
	orgHandler := httpH.NewOrgHandler(orgAgg, reportingService)
	aliasHandler := httpH.NewAliasHandler(aliasAgg, reportingService)
	locationHandler := httpH.NewLocationHandler(locationAgg, reportingService)
	relationshipHandler := httpH.NewRelationshipHandler(relationshipAgg, reportingService)
	correlationHandler := httpH.NewCorrelationHandler(correlationAgg, reportingService)
	ingestHandler := httpH.NewIngestHandler(ingestService)

	// Middleware
	authMiddleware := httpMW.NewAuthMiddleware(log, jwtSecretKey)

	// Server
	log.Info("Setting up router from main...")
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AuthMiddleware: authMiddleware,

		RegistryHandler:     registryHandler,
		OrgHandler:          orgHandler,
		AliasHandler:        aliasHandler,
		LocationHandler:     locationHandler,
		RelationshipHandler: relationshipHandler,
		CorrelationHandler:  correlationHandler,
		IngestHandler:       ingestHandler,

		HealthHandler: healthHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
