package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author is a person who commits to or checks out assets.
// PennKey is the identity key; names are empty until someone fills them in.
type Author struct {
	PennKey   string `json:"pennKey" db:"pennkey"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`
	Email     string `json:"email" db:"email"`
}

// FullName returns "First Last" without stray spaces.
func (a *Author) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// DisplayName falls back to the pennkey for lazily created authors.
func (a *Author) DisplayName() string {
	if name := a.FullName(); name != "" {
		return name
	}
	return a.PennKey
}

// Keyword is a normalized (lower-cased) tag shared across assets.
type Keyword struct {
	ID      int64  `json:"id" db:"id"`
	Keyword string `json:"keyword" db:"keyword"`
}

// Asset is a named 3D content bundle.
// Name is unique and never changes after creation.
type Asset struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	StructureVersion string     `json:"structureVersion" db:"structure_version"`
	HasTexture       bool       `json:"hasTexture" db:"has_texture"`
	ThumbnailKey     string     `json:"thumbnailKey" db:"thumbnail_key"`
	CheckedOutBy     *string    `json:"checkedOutBy" db:"checked_out_by"`
	CheckedOutAt     *time.Time `json:"checkedOutAt" db:"checked_out_at"`
	Keywords         []string   `json:"keywords"`
}

// IsCheckedOut reports whether someone holds the checkout lock.
func (a *Asset) IsCheckedOut() bool {
	return a.CheckedOutBy != nil
}

// Commit is one immutable entry in an asset's history.
// Seq is the insertion order and breaks timestamp ties.
type Commit struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Seq           int64     `json:"-" db:"seq"`
	AssetID       uuid.UUID `json:"assetId" db:"asset_id"`
	AuthorPennKey string    `json:"author" db:"author"`
	Version       string    `json:"version" db:"version"`
	Note          string    `json:"note" db:"note"`
	Timestamp     time.Time `json:"timestamp" db:"committed_at"`
}

// Before orders commits by timestamp, then insertion order.
func (c *Commit) Before(other *Commit) bool {
	if !c.Timestamp.Equal(other.Timestamp) {
		return c.Timestamp.Before(other.Timestamp)
	}
	return c.Seq < other.Seq
}

// CommitRecord is a commit joined with its author and asset name.
type CommitRecord struct {
	Commit
	Author       Author `json:"authorInfo"`
	AssetName    string `json:"assetName"`
	HasMaterials bool   `json:"hasMaterials"`
}

// AssetVersion binds one file of an asset to an object-store location and
// the store-assigned version id. Rows are never mutated.
type AssetVersion struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Seq            int64     `json:"-" db:"seq"`
	AssetID        uuid.UUID `json:"assetId" db:"asset_id"`
	CommitID       uuid.UUID `json:"commitId" db:"commit_id"`
	VariantLabel   *string   `json:"versionName" db:"variant_label"`
	Filepath       string    `json:"filepath" db:"filepath"`
	StoreVersionID *string   `json:"storeVersionId" db:"store_version_id"`
	Version        string    `json:"version" db:"version"`
}

// CatalogRow is the denormalized per-asset record the catalog is built from.
// First and Latest are nil only for an asset without commits.
type CatalogRow struct {
	Asset        Asset
	First        *CommitRecord
	Latest       *CommitRecord
	HasMaterials bool
}

// ThumbnailKey is the conventional thumbnail location of an asset.
func ThumbnailKey(assetName string) string {
	return assetName + "/thumbnail.png"
}

// ArchivePrefix holds prebuilt archives. Asset names start with an
// alphanumeric, so no asset folder can overlap it.
const ArchivePrefix = "_archives/"

// ArchiveKey is where the worker stores the archive of an asset as of one commit.
func ArchiveKey(assetName string, commitID uuid.UUID) string {
	return ArchivePrefix + assetName + "/" + commitID.String() + ".zip"
}

// NormalizeAssetName trims the name and drops an exported ".fbx" suffix.
func NormalizeAssetName(name string) string {
	name = strings.TrimSpace(name)
	if stem, ok := strings.CutSuffix(name, ".fbx"); ok {
		return stem
	}
	return name
}
