package repository

import (
	"asset-library-backend/internal/domains/asset/model"
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the metadata store of the asset library.
// Lookups return *model.AssetError with kind NotFound when a row is missing.
type Store interface {
	// WithTx runs fn in one unit of work. Every write fn makes is committed
	// together, or none is when fn returns an error or panics.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetAssetByName(ctx context.Context, name string) (*model.Asset, error)
	GetAuthor(ctx context.Context, pennKey string) (*model.Author, error)
	ListAuthors(ctx context.Context) ([]model.Author, error)

	// ListCatalog returns one row per asset from a single consistent snapshot.
	ListCatalog(ctx context.Context) ([]model.CatalogRow, error)
	// GetCatalogRow returns the catalog row of one asset.
	GetCatalogRow(ctx context.Context, name string) (*model.CatalogRow, error)

	// ListCommits returns commits newest first.
	ListCommits(ctx context.Context, filter CommitFilter) ([]model.CommitRecord, error)
	GetCommit(ctx context.Context, id uuid.UUID) (*model.CommitRecord, []model.AssetVersion, error)
	ListVersions(ctx context.Context, assetID uuid.UUID) ([]model.AssetVersion, error)

	// Checkout sets the holder only if the asset is checked in.
	// Returns false when another holder won.
	Checkout(ctx context.Context, assetID uuid.UUID, pennKey string, at time.Time) (bool, error)
	// Checkin clears the holder if it equals pennKey, or any holder when force is set.
	Checkin(ctx context.Context, assetID uuid.UUID, pennKey string, force bool) (bool, error)

	Ping(ctx context.Context) error
}

// Tx is the write surface available inside Store.WithTx.
type Tx interface {
	InsertAsset(ctx context.Context, asset *model.Asset) error
	// LockAssetByName serializes writers of one asset until the unit of work ends.
	LockAssetByName(ctx context.Context, name string) (*model.Asset, error)
	ResolveAuthor(ctx context.Context, pennKey string) (*model.Author, error)
	ResolveKeyword(ctx context.Context, raw string) (*model.Keyword, error)
	LinkKeyword(ctx context.Context, assetID uuid.UUID, keywordID int64) error
	AppendCommit(ctx context.Context, commit *model.Commit) error
	RecordVersion(ctx context.Context, version *model.AssetVersion) error
	// LatestCommit returns nil when the asset has no commits.
	LatestCommit(ctx context.Context, assetID uuid.UUID) (*model.Commit, error)
}

// CommitFilter narrows ListCommits. Zero values mean no restriction.
type CommitFilter struct {
	AssetID *uuid.UUID
	Author  string
	Limit   int
}
