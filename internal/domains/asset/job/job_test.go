package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/service"
	"asset-library-backend/internal/shared"
)

// stubService overrides the archive operations; other methods are unused.
type stubService struct {
	service.ServiceInterface
	buildErr  error
	built     []string
	refreshed []time.Duration
}

func (s *stubService) BuildArchive(ctx context.Context, assetName string) (string, error) {
	if s.buildErr != nil {
		return "", s.buildErr
	}
	s.built = append(s.built, assetName)
	return model.ArchiveKey(assetName, uuid.Nil), nil
}

func (s *stubService) RefreshArchives(ctx context.Context, window time.Duration) (int, error) {
	s.refreshed = append(s.refreshed, window)
	return 2, nil
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, raw)
}

func TestBuildArchiveHandler(t *testing.T) {
	svc := &stubService{}
	h := NewBuildArchiveHandler(svc)

	err := h.ProcessTask(context.Background(), task(t, shared.TypeBuildArchive, shared.BuildArchivePayload{AssetName: "chair"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"chair"}, svc.built)
}

func TestBuildArchiveHandler_SkipsRetryWhenMissing(t *testing.T) {
	h := NewBuildArchiveHandler(&stubService{buildErr: model.NewFilesNotFound("chair")})

	err := h.ProcessTask(context.Background(), task(t, shared.TypeBuildArchive, shared.BuildArchivePayload{AssetName: "chair"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestBuildArchiveHandler_RetriesStoreFailure(t *testing.T) {
	h := NewBuildArchiveHandler(&stubService{buildErr: model.NewStoreUnavailable(model.StageDownload, errors.New("down"))})

	err := h.ProcessTask(context.Background(), task(t, shared.TypeBuildArchive, shared.BuildArchivePayload{AssetName: "chair"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestBuildArchiveHandler_BadPayload(t *testing.T) {
	h := NewBuildArchiveHandler(&stubService{})

	err := h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeBuildArchive, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRefreshArchivesHandler_Window(t *testing.T) {
	svc := &stubService{}
	h := NewRefreshArchivesHandler(svc)
	ctx := context.Background()

	require.NoError(t, h.ProcessTask(ctx, task(t, shared.TypeRefreshArchives, shared.RefreshArchivesPayload{WindowHours: 6})))
	require.NoError(t, h.ProcessTask(ctx, task(t, shared.TypeRefreshArchives, shared.RefreshArchivesPayload{})))

	assert.Equal(t, []time.Duration{6 * time.Hour, 24 * time.Hour}, svc.refreshed)
}
