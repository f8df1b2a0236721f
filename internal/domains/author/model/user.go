package model

import "time"

// ========================================
// USER DTOs
// ========================================

// UserSummary is one entry of the users list
type UserSummary struct {
	PennID   string `json:"pennId"`
	FullName string `json:"fullName"`
}

// CreatedAsset is an asset whose first commit belongs to the user
type CreatedAsset struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CheckedOutAsset is an asset the user currently holds
type CheckedOutAsset struct {
	Name         string     `json:"name"`
	CheckedOutAt *time.Time `json:"checkedOutAt"`
}

// RecentCommit is one of the user's latest commits
type RecentCommit struct {
	AssetName string    `json:"assetName"`
	Version   string    `json:"version"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

// UserDetail is the profile page of one author
type UserDetail struct {
	PennKey          string            `json:"pennKey"`
	FullName         string            `json:"fullName"`
	Email            string            `json:"email,omitempty"`
	AssetsCreated    []CreatedAsset    `json:"assetsCreated"`
	CheckedOutAssets []CheckedOutAsset `json:"checkedOutAssets"`
	RecentCommits    []RecentCommit    `json:"recentCommits"`
}
