package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"asset-library-backend/pkg/cache"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Config tunes the asset service
type Config struct {
	ThumbnailCacheTTL  time.Duration
	UploadConcurrency  int
	RecentCommitsLimit int
}

// Deps are the collaborators of the asset service. Queue, Cache and
// Thumbnails may be nil.
type Deps struct {
	Store      repository.Store
	Blobs      BlobStore
	Archiver   ArchiveBuilder
	Thumbnails ThumbnailNormalizer
	Queue      ArchiveQueue
	Cache      cache.Cache
}

// assetService implements ServiceInterface
type assetService struct {
	store      repository.Store
	blobs      BlobStore
	archiver   ArchiveBuilder
	thumbnails ThumbnailNormalizer
	queue      ArchiveQueue
	cache      cache.Cache
	cfg        Config
	now        func() time.Time
}

// NewAssetService creates the asset service
func NewAssetService(deps Deps, cfg Config) ServiceInterface {
	return newAssetService(deps, cfg)
}

func newAssetService(deps Deps, cfg Config) *assetService {
	if cfg.UploadConcurrency < 1 {
		cfg.UploadConcurrency = 4
	}
	if cfg.RecentCommitsLimit < 1 {
		cfg.RecentCommitsLimit = 10
	}
	return &assetService{
		store:      deps.Store,
		blobs:      deps.Blobs,
		archiver:   deps.Archiver,
		thumbnails: deps.Thumbnails,
		queue:      deps.Queue,
		cache:      deps.Cache,
		cfg:        cfg,
		now:        time.Now,
	}
}

// commitTime defaults a zero timestamp to now
func (s *assetService) commitTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return s.now().UTC()
	}
	return ts.UTC()
}

// getAsset loads an asset and tags a failure with stage
func (s *assetService) getAsset(ctx context.Context, name string, stage model.Stage) (*model.Asset, error) {
	asset, err := s.store.GetAssetByName(ctx, name)
	if err != nil {
		return nil, model.WithStage(err, stage)
	}
	return asset, nil
}

// thumbnailURL presigns key through the cache. Failures degrade to nil.
func (s *assetService) thumbnailURL(ctx context.Context, key string) *string {
	if key == "" || s.blobs == nil {
		return nil
	}

	cacheKey := "thumb:" + key
	if s.cache != nil {
		var cached string
		found, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("thumbnail cache read failed")
		} else if found {
			return &cached
		}
	}

	url, err := s.blobs.PresignedURL(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to presign thumbnail")
		return nil
	}

	if s.cache != nil && s.cfg.ThumbnailCacheTTL > 0 {
		if err := s.cache.Set(ctx, cacheKey, url, s.cfg.ThumbnailCacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("thumbnail cache write failed")
		}
	}
	return &url
}

// withDetails copies an AssetError and replaces its details
func withDetails(err error, details map[string]any) error {
	var ae *model.AssetError
	if !errors.As(err, &ae) {
		return err
	}
	tagged := *ae
	if ae.Details != nil {
		details["errors"] = ae.Details
	}
	tagged.Details = details
	return &tagged
}
