// Package api stellt die Snapshot-Abfragen und Ingest-Läufe über HTTP bereit.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"competitor-watch/config"
	"competitor-watch/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// APIKeyAuthMiddleware prüft den X-API-KEY Header. Ohne konfigurierten Schlüssel ist alles offen.
func APIKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// NewRouter baut den gin-Router mit allen Routen und /metrics.
func NewRouter(cfg *config.Config, svc *services.IngestService, log *zap.Logger) *gin.Engine {
	router := gin.Default()
	router.Use(APIKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupSnapshotRoutes(router, svc.Store, log)
	setupCompetitorRoutes(router, svc.Store, log)
	setupIngestRoutes(router, svc, log)
	setupProfileRoutes(router, svc, log)
	return router
}

func setupSnapshotRoutes(router *gin.Engine, store *services.Store, log *zap.Logger) {
	rg := router.Group("/snapshots")

	rg.GET("", func(c *gin.Context) {
		snaps, err := store.ListSnapshots(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, snaps)
	})

	rg.GET("/latest", func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok, err := store.LatestSnapshotID(ctx)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshots yet"})
			return
		}
		snap, err := store.Snapshot(ctx, id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	rg.GET("/:id/documents", func(c *gin.Context) {
		docs, err := store.SnapshotDocuments(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	})

	// Nur Dokumente mit mindestens einer Wettbewerber-Erwähnung
	rg.GET("/:id/competitors", func(c *gin.Context) {
		docs, err := store.TaggedDocuments(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	})

	rg.GET("/:id/new", func(c *gin.Context) {
		id := c.Param("id")
		items, prev, err := store.NewSincePrevious(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"snapshot_id":          id,
			"previous_snapshot_id": prev,
			"items":                items,
		})
	})
}

func setupCompetitorRoutes(router *gin.Engine, store *services.Store, log *zap.Logger) {
	router.GET("/competitors", func(c *gin.Context) {
		comps, err := store.Competitors(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, comps)
	})
}

func setupIngestRoutes(router *gin.Engine, svc *services.IngestService, log *zap.Logger) {
	rg := router.Group("/ingest")

	rg.POST("/pubmed", func(c *gin.Context) {
		var req services.PubMedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		report, err := svc.RunPubMed(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/trials", func(c *gin.Context) {
		var req services.TrialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		report, err := svc.RunTrials(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})
}

func setupProfileRoutes(router *gin.Engine, svc *services.IngestService, log *zap.Logger) {
	rg := router.Group("/profiles")

	rg.GET("", func(c *gin.Context) {
		profiles, err := svc.Store.Profiles(c.Request.Context(), c.Query("active") == "true")
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, profiles)
	})

	rg.POST("", func(c *gin.Context) {
		var req struct {
			Name       string `json:"name" binding:"required"`
			Molecule   string `json:"molecule"`
			QueryTerms string `json:"query_terms" binding:"required"`
			Frequency  string `json:"frequency"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		profile, err := svc.Store.CreateProfile(c.Request.Context(), req.Name, req.Molecule, req.QueryTerms, req.Frequency)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, profile)
	})

	rg.POST("/:id/run", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile id"})
			return
		}
		report, err := svc.RunProfile(c.Request.Context(), uint(id))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})
}

// writeError übersetzt die Service-Fehler in HTTP-Statuscodes.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrProfileNotFound), errors.Is(err, services.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Error("Anfrage fehlgeschlagen", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
