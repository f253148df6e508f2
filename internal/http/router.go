package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/oriadata/orgmaster/internal/http/handlers"
	httpMW "github.com/oriadata/orgmaster/internal/http/middleware"
	"github.com/oriadata/orgmaster/internal/observability"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	RegistryHandler     *httpH.RegistryHandler
	OrgHandler          *httpH.OrgHandler
	AliasHandler        *httpH.AliasHandler
	LocationHandler     *httpH.LocationHandler
	RelationshipHandler *httpH.RelationshipHandler
	CorrelationHandler  *httpH.CorrelationHandler
	IngestHandler       *httpH.IngestHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachRequestContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS())
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Registry (public reads)
		if cfg.RegistryHandler != nil {
			api.GET("/sources", cfg.RegistryHandler.ListSources)
			api.GET("/schemes", cfg.RegistryHandler.ListSchemes)
			api.GET("/relationship-types", cfg.RegistryHandler.ListRelationshipTypes)
		}

		// Org reads
		if cfg.OrgHandler != nil {
			api.GET("/orgs/:id", cfg.OrgHandler.Get)
			api.GET("/orgs/:id/history", cfg.OrgHandler.History)
			api.GET("/orgs/:id/merges", cfg.OrgHandler.MergeHistory)
		}
		if cfg.AliasHandler != nil {
			api.GET("/orgs/:id/aliases", cfg.AliasHandler.List)
		}
		if cfg.LocationHandler != nil {
			api.GET("/orgs/:id/locations", cfg.LocationHandler.List)
		}
		if cfg.RelationshipHandler != nil {
			api.GET("/orgs/:id/neighbors", cfg.RelationshipHandler.Neighbors)
			api.GET("/orgs/:id/walk", cfg.RelationshipHandler.Walk)
		}
		if cfg.CorrelationHandler != nil {
			api.GET("/orgs/:id/correlations", cfg.CorrelationHandler.List)
			api.GET("/resolve", cfg.CorrelationHandler.Resolve)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Registry writes
		if cfg.RegistryHandler != nil {
			protected.POST("/sources", cfg.RegistryHandler.CreateSource)
			protected.POST("/schemes", cfg.RegistryHandler.CreateScheme)
			protected.POST("/relationship-types", cfg.RegistryHandler.CreateRelationshipType)
			protected.POST("/postcodes", cfg.RegistryHandler.CreatePostcode)
		}

		// Org lifecycle
		if cfg.OrgHandler != nil {
			protected.POST("/orgs", cfg.OrgHandler.Create)
			protected.POST("/orgs/:id/rename", cfg.OrgHandler.Rename)
			protected.POST("/orgs/:id/flags", cfg.OrgHandler.SetFlags)
			protected.POST("/orgs/:id/dissolve", cfg.OrgHandler.Dissolve)
			protected.POST("/orgs/:id/merge", cfg.OrgHandler.Merge)
			protected.POST("/orgs/:id/split", cfg.OrgHandler.Split)
		}

		// Facts
		if cfg.AliasHandler != nil {
			protected.POST("/orgs/:id/aliases", cfg.AliasHandler.Add)
			protected.POST("/orgs/:id/aliases/retire", cfg.AliasHandler.Retire)
		}
		if cfg.LocationHandler != nil {
			protected.POST("/orgs/:id/locations", cfg.LocationHandler.Add)
			protected.POST("/orgs/:id/locations/remove", cfg.LocationHandler.Remove)
		}
		if cfg.RelationshipHandler != nil {
			protected.POST("/orgs/:id/relationships", cfg.RelationshipHandler.Link)
			protected.POST("/orgs/:id/relationships/unlink", cfg.RelationshipHandler.Unlink)
		}
		if cfg.CorrelationHandler != nil {
			protected.POST("/orgs/:id/correlations", cfg.CorrelationHandler.Correlate)
			protected.POST("/orgs/:id/correlations/retire", cfg.CorrelationHandler.Retire)
		}

		// Feeds
		if cfg.IngestHandler != nil {
			protected.POST("/ingest/batches", cfg.IngestHandler.SubmitBatch)
			protected.GET("/ingest/batches/:batch_id/records", cfg.IngestHandler.GetBatchRecords)
		}
	}

	return r
}
