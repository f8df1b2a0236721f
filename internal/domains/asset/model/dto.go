package model

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxKeywordLength bounds a normalized keyword.
const MaxKeywordLength = 64

var assetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ========================================
// METADATA COMMIT DTOs
// ========================================

// CommitInput is the commit part of every metadata write
type CommitInput struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Note      string    `json:"note"`
}

func (c CommitInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Author,
			validation.Required.Error("pennkey is required"),
			validation.Length(1, 64),
		),
		validation.Field(&c.Version, validation.Length(0, 32)),
		validation.Field(&c.Note, validation.Length(0, 5000)),
	)
}

// CreateMetadataRequest creates an asset together with its first commit
type CreateMetadataRequest struct {
	AssetName             string      `json:"assetName"`
	AssetStructureVersion string      `json:"assetStructureVersion"`
	HasTexture            bool        `json:"hasTexture"`
	Keywords              []string    `json:"keywords"`
	Commit                CommitInput `json:"commit"`
}

func (r CreateMetadataRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.AssetName, assetNameRules()...),
		validation.Field(&r.AssetStructureVersion,
			validation.Required.Error("structure version is required"),
			validation.Length(1, 32),
		),
		validation.Field(&r.Keywords, validation.Length(0, 50)),
		validation.Field(&r.Commit),
	)
	if err != nil {
		return err
	}
	if strings.TrimSpace(r.Commit.Version) == "" {
		return validation.Errors{"commit": validation.Errors{"version": errors.New("commit version is required")}}
	}
	return nil
}

// UpdateMetadataRequest records uploaded files and appends a commit.
// VersionMap maps object-store key to store version id.
type UpdateMetadataRequest struct {
	AssetName        string            `json:"assetName"`
	NewVersion       string            `json:"newVersion"`
	VersionIncrement VersionIncrement  `json:"versionIncrement,omitempty"`
	VersionMap       map[string]string `json:"versionMap"`
	Keywords         []string          `json:"keywords"`
	Commit           CommitInput       `json:"commit"`
}

func (r UpdateMetadataRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.AssetName, assetNameRules()...),
		validation.Field(&r.NewVersion, validation.Length(0, 32)),
		validation.Field(&r.VersionIncrement,
			validation.When(r.VersionIncrement != "",
				validation.In(IncrementMajor, IncrementMinor, IncrementPatch).Error("must be major, minor or patch"),
			),
		),
		validation.Field(&r.VersionMap, validation.Required.Error("request missing files")),
		validation.Field(&r.Keywords, validation.Length(0, 50)),
		validation.Field(&r.Commit),
	)
	if err != nil {
		return err
	}

	if r.NewVersion == "" && r.VersionIncrement == "" && r.Commit.Version == "" {
		return validation.Errors{
			"newVersion": errors.New("one of newVersion, versionIncrement or commit.version is required"),
		}
	}
	for key, id := range r.VersionMap {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(id) == "" {
			return validation.Errors{
				"versionMap": errors.New("keys and version ids must not be empty"),
			}
		}
	}
	return nil
}

// ImportRequest creates an asset with a full commit history in one go
type ImportRequest struct {
	AssetName             string        `json:"assetName"`
	AssetStructureVersion string        `json:"assetStructureVersion"`
	HasTexture            bool          `json:"hasTexture"`
	Keywords              []string      `json:"keywords"`
	CommitHistory         []CommitInput `json:"commitHistory"`
}

func (r ImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AssetName, assetNameRules()...),
		validation.Field(&r.AssetStructureVersion, validation.Required, validation.Length(1, 32)),
		validation.Field(&r.Keywords, validation.Length(0, 50)),
		validation.Field(&r.CommitHistory,
			validation.Required.Error("at least one commit is required"),
			validation.Each(validation.By(func(v interface{}) error {
				c := v.(CommitInput)
				if c.Version == "" {
					return errors.New("commit version is required")
				}
				return nil
			})),
		),
	)
}

func assetNameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("asset name is required"),
		validation.Length(1, 255),
		validation.Match(assetNamePattern).Error("asset name may only contain letters, digits, '_', '.' and '-'"),
	}
}

// NormalizeKeyword lower-cases and trims a keyword.
func NormalizeKeyword(raw string) (string, error) {
	kw := strings.ToLower(strings.TrimSpace(raw))
	if kw == "" {
		return "", NewValidationMessage("keyword must not be empty")
	}
	if len(kw) > MaxKeywordLength {
		return "", NewValidationMessage("keyword '" + kw + "' exceeds maximum length")
	}
	return kw, nil
}

// ========================================
// CHECKOUT DTOs
// ========================================

type CheckoutRequest struct {
	PennKey string `json:"pennkey"`
}

func (r CheckoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PennKey, validation.Required.Error("pennkey is required")),
	)
}

// CheckinRequest releases the lock. Force is the override role and releases
// whoever holds it.
type CheckinRequest struct {
	PennKey string `json:"pennkey"`
	Force   bool   `json:"force"`
}

func (r CheckinRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PennKey, validation.Required.Error("pennkey is required")),
	)
}

// CheckoutState is returned by checkout and checkin
type CheckoutState struct {
	Name         string     `json:"name"`
	CheckedOutBy *string    `json:"checkedOutBy"`
	CheckedOutAt *time.Time `json:"checkedOutAt,omitempty"`
	IsCheckedOut bool       `json:"isCheckedOut"`
}

// ========================================
// CATALOG DTOs
// ========================================

// SortKey orders the catalog
type SortKey string

const (
	SortByName    SortKey = "name"
	SortByAuthor  SortKey = "author"
	SortByUpdated SortKey = "updated"
	SortByCreated SortKey = "created"
)

// CatalogQuery filters and sorts the asset list
type CatalogQuery struct {
	Search        string  `form:"search"`
	Author        string  `form:"author"`
	CheckedInOnly bool    `form:"checkedInOnly"`
	SortBy        SortKey `form:"sortBy"`
}

func (q CatalogQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.SortBy,
			validation.When(q.SortBy != "",
				validation.In(SortByName, SortByAuthor, SortByUpdated, SortByCreated).Error("must be name, author, updated or created"),
			),
		),
	)
}

// AssetView is the browsable representation of one asset
type AssetView struct {
	Name           string     `json:"name"`
	ThumbnailURL   *string    `json:"thumbnailUrl"`
	Version        string     `json:"version"`
	Creator        string     `json:"creator"`
	LastModifiedBy string     `json:"lastModifiedBy"`
	CheckedOutBy   *string    `json:"checkedOutBy"`
	IsCheckedOut   bool       `json:"isCheckedOut"`
	Materials      bool       `json:"materials"`
	Keywords       []string   `json:"keywords"`
	Description    string     `json:"description"`
	CreatedAt      *time.Time `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

// CommitView is one history entry
type CommitView struct {
	CommitID     string    `json:"commitId"`
	PennKey      string    `json:"pennKey"`
	VersionNum   string    `json:"versionNum"`
	Notes        string    `json:"notes"`
	CommitDate   time.Time `json:"commitDate"`
	HasMaterials bool      `json:"hasMaterials"`
	AssetName    string    `json:"assetName"`
}

// SublayerView is one file row of a commit
type SublayerView struct {
	ID             string  `json:"id"`
	VersionName    *string `json:"versionName"`
	Filepath       string  `json:"filepath"`
	StoreVersionID *string `json:"storeVersionId"`
	Version        string  `json:"version"`
}

// CommitDetail adds author and file rows to a CommitView
type CommitDetail struct {
	CommitView
	AuthorName  string         `json:"authorName"`
	AuthorEmail string         `json:"authorEmail"`
	AssetID     string         `json:"assetId"`
	Sublayers   []SublayerView `json:"sublayers"`
}

// ========================================
// TRANSFER DTOs
// ========================================

// UploadFile is one file received for an asset. Name is relative to the
// asset folder (e.g. "LODs/chair_LOD1.usda").
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// VersionMap maps object-store key to the version id the store assigned
type VersionMap map[string]string

// CommitUploadResult is returned when files and metadata are committed together
type CommitUploadResult struct {
	VersionMap VersionMap `json:"versionMap"`
	Asset      *AssetView `json:"asset"`
}

// ArchiveStatus is returned when an archive build is requested
type ArchiveStatus struct {
	AssetName  string `json:"assetName"`
	Revision   string `json:"revision"`
	TaskID     string `json:"taskId"`
	Queued     bool   `json:"queued"`
	ArchiveKey string `json:"archiveKey"`
}

// ArchiveLink points at a prebuilt archive
type ArchiveLink struct {
	AssetName string `json:"assetName"`
	Revision  string `json:"revision"`
	Key       string `json:"key"`
	URL       string `json:"url"`
}
