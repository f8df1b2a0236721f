package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"asset-library-backend/internal/domains/asset/service"
	"asset-library-backend/internal/shared"
)

const defaultRefreshWindow = 24 * time.Hour

// RefreshArchivesHandler queues archive builds for recently changed assets
type RefreshArchivesHandler struct {
	assetService service.ServiceInterface
}

func NewRefreshArchivesHandler(assetService service.ServiceInterface) *RefreshArchivesHandler {
	return &RefreshArchivesHandler{
		assetService: assetService,
	}
}

func (h *RefreshArchivesHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.RefreshArchivesPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal RefreshArchives payload")
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	window := time.Duration(payload.WindowHours) * time.Hour
	if window <= 0 {
		window = defaultRefreshWindow
	}

	queued, err := h.assetService.RefreshArchives(ctx, window)
	if err != nil {
		log.Error().Err(err).Dur("window", window).Msg("Failed to refresh archives")
		return fmt.Errorf("refresh archives: %w", err)
	}

	log.Info().Int("queued", queued).Dur("window", window).Msg("Archive refresh completed")
	return nil
}
