package service

import (
	assetModel "asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"asset-library-backend/internal/domains/author/model"
	"context"
	"sort"
	"strings"
)

const defaultRecentCommits = 10

// userService implements ServiceInterface on top of the asset store
type userService struct {
	store         repository.Store
	recentCommits int
}

// NewUserService creates a new user service instance
func NewUserService(store repository.Store, recentCommits int) ServiceInterface {
	if recentCommits < 1 {
		recentCommits = defaultRecentCommits
	}
	return &userService{
		store:         store,
		recentCommits: recentCommits,
	}
}

func (s *userService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, assetModel.WithStage(err, assetModel.StageQuery)
	}

	users := make([]model.UserSummary, 0, len(authors))
	for i := range authors {
		users = append(users, model.UserSummary{
			PennID:   authors[i].PennKey,
			FullName: authors[i].DisplayName(),
		})
	}
	return users, nil
}

func (s *userService) GetUser(ctx context.Context, pennKey string) (*model.UserDetail, error) {
	pennKey = strings.TrimSpace(pennKey)

	author, err := s.store.GetAuthor(ctx, pennKey)
	if err != nil {
		return nil, assetModel.WithStage(err, assetModel.StageQuery)
	}

	rows, err := s.store.ListCatalog(ctx)
	if err != nil {
		return nil, assetModel.WithStage(err, assetModel.StageQuery)
	}

	detail := &model.UserDetail{
		PennKey:          author.PennKey,
		FullName:         author.DisplayName(),
		Email:            author.Email,
		AssetsCreated:    []model.CreatedAsset{},
		CheckedOutAssets: []model.CheckedOutAsset{},
		RecentCommits:    []model.RecentCommit{},
	}

	for _, row := range rows {
		if row.First != nil && row.First.AuthorPennKey == author.PennKey {
			detail.AssetsCreated = append(detail.AssetsCreated, model.CreatedAsset{
				Name:      row.Asset.Name,
				CreatedAt: row.First.Timestamp,
			})
		}
		if row.Asset.CheckedOutBy != nil && *row.Asset.CheckedOutBy == author.PennKey {
			detail.CheckedOutAssets = append(detail.CheckedOutAssets, model.CheckedOutAsset{
				Name:         row.Asset.Name,
				CheckedOutAt: row.Asset.CheckedOutAt,
			})
		}
	}
	sort.SliceStable(detail.AssetsCreated, func(i, j int) bool {
		return detail.AssetsCreated[i].CreatedAt.After(detail.AssetsCreated[j].CreatedAt)
	})

	commits, err := s.store.ListCommits(ctx, repository.CommitFilter{
		Author: author.PennKey,
		Limit:  s.recentCommits,
	})
	if err != nil {
		return nil, assetModel.WithStage(err, assetModel.StageQuery)
	}
	for _, c := range commits {
		detail.RecentCommits = append(detail.RecentCommits, model.RecentCommit{
			AssetName: c.AssetName,
			Version:   c.Version,
			Note:      c.Note,
			Timestamp: c.Timestamp,
		})
	}

	return detail, nil
}
