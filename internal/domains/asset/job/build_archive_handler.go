package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/service"
	"asset-library-backend/internal/shared"
)

// BuildArchiveHandler zips one asset and stores the archive in the blob store
type BuildArchiveHandler struct {
	assetService service.ServiceInterface
}

func NewBuildArchiveHandler(assetService service.ServiceInterface) *BuildArchiveHandler {
	return &BuildArchiveHandler{
		assetService: assetService,
	}
}

// ProcessTask builds the archive of the asset's latest revision. Missing
// assets or files are not retried.
func (h *BuildArchiveHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.BuildArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal BuildArchive payload")
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	log.Info().
		Str("asset", payload.AssetName).
		Str("revision", payload.Revision).
		Str("requested_by", payload.RequestedBy).
		Msg("Building asset archive")

	key, err := h.assetService.BuildArchive(ctx, payload.AssetName)
	if err != nil {
		log.Error().
			Err(err).
			Str("asset", payload.AssetName).
			Msg("Failed to build asset archive")
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("build archive: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("build archive: %w", err)
	}

	log.Info().
		Str("asset", payload.AssetName).
		Str("key", key).
		Msg("Asset archive built successfully")

	return nil
}
