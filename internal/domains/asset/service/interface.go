package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"context"
	"io"
	"time"
)

// ServiceInterface is the asset library business surface
type ServiceInterface interface {
	// Metadata commit protocol
	CreateMetadata(ctx context.Context, req model.CreateMetadataRequest) (*model.AssetView, error)
	UpdateMetadata(ctx context.Context, req model.UpdateMetadataRequest) (*model.AssetView, error)
	ImportAsset(ctx context.Context, req model.ImportRequest) (*model.AssetView, error)

	// Checkout lock
	Checkout(ctx context.Context, assetName string, req model.CheckoutRequest) (*model.CheckoutState, error)
	Checkin(ctx context.Context, assetName string, req model.CheckinRequest) (*model.CheckoutState, error)

	// Catalog
	ListAssets(ctx context.Context, query model.CatalogQuery) ([]model.AssetView, error)
	GetAsset(ctx context.Context, assetName string) (*model.AssetView, error)

	// History
	ListAssetCommits(ctx context.Context, assetName string) ([]model.CommitView, error)
	ListCommits(ctx context.Context) ([]model.CommitView, error)
	GetCommit(ctx context.Context, id string) (*model.CommitDetail, error)
	LatestVariants(ctx context.Context, assetName string) (map[string]model.SublayerView, error)

	// Transfer
	UploadFiles(ctx context.Context, assetName string, files []model.UploadFile) (model.VersionMap, error)
	CommitUpload(ctx context.Context, assetName string, files []model.UploadFile, meta model.UpdateMetadataRequest) (*model.CommitUploadResult, error)
	DownloadArchive(ctx context.Context, assetName string, w io.Writer) error
	BuildArchive(ctx context.Context, assetName string) (string, error)
	EnqueueArchive(ctx context.Context, assetName, requestedBy string) (*model.ArchiveStatus, error)
	ArchiveURL(ctx context.Context, assetName string) (*model.ArchiveLink, error)
	RefreshArchives(ctx context.Context, window time.Duration) (int, error)
}

// BlobStore is the object store holding asset files
type BlobStore interface {
	// Upload returns the version id the store assigned
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

// ArchiveBuilder packs files (name -> content) into one stream
type ArchiveBuilder interface {
	Build(files map[string][]byte, w io.Writer) error
}

// ThumbnailNormalizer turns an uploaded image into the stored thumbnail
type ThumbnailNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// ArchiveQueue schedules background archive builds. A build is queued at
// most once per asset revision.
type ArchiveQueue interface {
	EnqueueBuildArchive(ctx context.Context, assetName, revision, requestedBy string) (taskID string, queued bool, err error)
}
