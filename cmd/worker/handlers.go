package main

import (
	"github.com/hibiken/asynq"

	assetJob "asset-library-backend/internal/domains/asset/job"
	"asset-library-backend/internal/shared"
	"asset-library-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	buildArchive    *assetJob.BuildArchiveHandler
	refreshArchives *assetJob.RefreshArchivesHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		buildArchive:    assetJob.NewBuildArchiveHandler(c.AssetService),
		refreshArchives: assetJob.NewRefreshArchivesHandler(c.AssetService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Archives
	mux.HandleFunc(shared.TypeBuildArchive, h.buildArchive.ProcessTask)
	mux.HandleFunc(shared.TypeRefreshArchives, h.refreshArchives.ProcessTask)
}
