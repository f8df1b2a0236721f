package service

import (
	"asset-library-backend/internal/domains/author/model"
	"context"
)

// ServiceInterface is the read surface over authors
type ServiceInterface interface {
	// ListUsers returns every known author ordered by first then last name.
	// Authors created implicitly by a commit have no name; their full name
	// falls back to the pennkey.
	ListUsers(ctx context.Context) ([]model.UserSummary, error)

	// GetUser returns the author with the assets they created, the assets
	// they hold checked out and their most recent commits.
	// Errors: AUTHOR_NOT_FOUND
	GetUser(ctx context.Context, pennKey string) (*model.UserDetail, error)
}
