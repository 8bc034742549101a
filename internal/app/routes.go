package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperchain/core/internal/modules/auth/user"
	"github.com/paperchain/core/internal/modules/content/paper"
	"github.com/paperchain/core/internal/modules/identity"
	"github.com/paperchain/core/internal/modules/processing/analysis"
	"github.com/paperchain/core/internal/modules/storage/ipfs"
	"github.com/paperchain/core/internal/pkg/response"
)

const apiPrefix = "/api"

func (a *App) registerRoutes(deps Deps) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "")
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	identities := identity.NewResolver(deps.Repo, a.logger)

	var analyzer paper.Analyzer
	if deps.Model != nil {
		analyzer = analysis.NewService(deps.Repo, deps.Store, deps.Model, a.logger,
			analysis.WithChunkSize(a.cfg.AI.ChunkSize),
			analysis.WithObserver(a.metrics),
		)
	}

	api := r.Group(apiPrefix)
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	paper.NewHandler(paper.NewService(paper.Deps{
		Repo:       deps.Repo,
		Identities: identities,
		Store:      deps.Store,
		Analyzer:   analyzer,
		Dispatcher: a.dispatcher,
		Recorder:   a.metrics,
		Logger:     a.logger,
	})).RegisterRoutes(api)
	ipfs.NewHandler(deps.Store, a.metrics, a.logger).RegisterRoutes(api)
	user.NewHandler(user.NewService(deps.Repo, identities)).RegisterRoutes(api)
}
