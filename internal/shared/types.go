package shared

// Queues
const (
	QueueArchive = "archive"
	QueueDefault = "default"
)

// Task types
const (
	TypeBuildArchive    = "asset:build_archive"
	TypeRefreshArchives = "asset:refresh_archives"
)

// BuildArchivePayload asks the worker to zip one asset. Revision is the
// latest commit id when the build was requested.
type BuildArchivePayload struct {
	AssetName   string `json:"assetName"`
	Revision    string `json:"revision"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// RefreshArchivesPayload rebuilds archives of assets committed to in the
// last WindowHours hours.
type RefreshArchivesPayload struct {
	WindowHours int `json:"windowHours"`
}
