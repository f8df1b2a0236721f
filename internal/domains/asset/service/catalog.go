package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"context"
	"sort"
	"strings"
)

const (
	unknownAuthor      = "Unknown"
	defaultDescription = "No description available"
)

// ListAssets builds the browsable catalog from one store snapshot
func (s *assetService) ListAssets(ctx context.Context, query model.CatalogQuery) ([]model.AssetView, error) {
	if err := query.Validate(); err != nil {
		return nil, model.WithStage(model.NewValidationError(err), model.StageQuery)
	}

	rows, err := s.store.ListCatalog(ctx)
	if err != nil {
		return nil, model.WithStage(err, model.StageQuery)
	}

	rows = filterCatalog(rows, query)
	sortCatalog(rows, query.SortBy)

	views := make([]model.AssetView, 0, len(rows))
	for i := range rows {
		views = append(views, buildView(&rows[i], s.thumbnailURL(ctx, rows[i].Asset.ThumbnailKey)))
	}
	return views, nil
}

// GetAsset returns the catalog view of one asset
func (s *assetService) GetAsset(ctx context.Context, assetName string) (*model.AssetView, error) {
	name := model.NormalizeAssetName(assetName)

	row, err := s.store.GetCatalogRow(ctx, name)
	if err != nil {
		return nil, model.WithStage(err, model.StageQuery)
	}
	if row.Latest == nil {
		return nil, model.WithStage(model.NewAssetNotFound(name), model.StageQuery)
	}
	view := buildView(row, s.thumbnailURL(ctx, row.Asset.ThumbnailKey))
	return &view, nil
}

// filterCatalog drops assets without history and applies the query filters
func filterCatalog(rows []model.CatalogRow, query model.CatalogQuery) []model.CatalogRow {
	search := strings.ToLower(strings.TrimSpace(query.Search))
	authorTokens := strings.Fields(strings.ToLower(query.Author))

	out := rows[:0:0]
	for _, row := range rows {
		if row.Latest == nil || row.First == nil {
			continue
		}
		if query.CheckedInOnly && row.Asset.IsCheckedOut() {
			continue
		}
		if search != "" && !matchesSearch(&row, search) {
			continue
		}
		if len(authorTokens) > 0 && !matchesAuthor(&row, authorTokens) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// matchesSearch is a case-insensitive substring match on name or any keyword
func matchesSearch(row *model.CatalogRow, search string) bool {
	if strings.Contains(strings.ToLower(row.Asset.Name), search) {
		return true
	}
	for _, kw := range row.Asset.Keywords {
		if strings.Contains(strings.ToLower(kw), search) {
			return true
		}
	}
	return false
}

// matchesAuthor requires every token to match the creator's first or last name
func matchesAuthor(row *model.CatalogRow, tokens []string) bool {
	if row.First == nil {
		return false
	}
	first := strings.ToLower(row.First.Author.FirstName)
	last := strings.ToLower(row.First.Author.LastName)
	for _, token := range tokens {
		if !strings.Contains(first, token) && !strings.Contains(last, token) {
			return false
		}
	}
	return true
}

// sortCatalog orders rows in place. Ties fall back to the asset name.
func sortCatalog(rows []model.CatalogRow, key model.SortKey) {
	var less func(a, b *model.CatalogRow) (bool, bool)

	switch key {
	case model.SortByName:
		less = func(a, b *model.CatalogRow) (bool, bool) { return false, false }
	case model.SortByAuthor:
		less = func(a, b *model.CatalogRow) (bool, bool) {
			ka, kb := creatorSortKey(a), creatorSortKey(b)
			return ka < kb, ka != kb
		}
	case model.SortByCreated:
		less = func(a, b *model.CatalogRow) (bool, bool) {
			return newerFirst(a.First, b.First)
		}
	default:
		less = func(a, b *model.CatalogRow) (bool, bool) {
			return newerFirst(a.Latest, b.Latest)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if result, decided := less(&rows[i], &rows[j]); decided {
			return result
		}
		return rows[i].Asset.Name < rows[j].Asset.Name
	})
}

func creatorSortKey(row *model.CatalogRow) string {
	if row.First == nil {
		return "\uffff"
	}
	return strings.ToLower(row.First.Author.FirstName) + "\x00" + strings.ToLower(row.First.Author.LastName)
}

// newerFirst orders by descending commit time; missing commits go last
func newerFirst(a, b *model.CommitRecord) (bool, bool) {
	switch {
	case a == nil && b == nil:
		return false, false
	case a == nil:
		return false, true
	case b == nil:
		return true, true
	case a.Timestamp.Equal(b.Timestamp):
		return false, false
	default:
		return a.Timestamp.After(b.Timestamp), true
	}
}

// buildView denormalizes a catalog row. Missing commits degrade to defaults.
func buildView(row *model.CatalogRow, thumbnailURL *string) model.AssetView {
	view := model.AssetView{
		Name:           row.Asset.Name,
		ThumbnailURL:   thumbnailURL,
		Version:        model.DefaultVersion,
		Creator:        unknownAuthor,
		LastModifiedBy: unknownAuthor,
		CheckedOutBy:   row.Asset.CheckedOutBy,
		IsCheckedOut:   row.Asset.IsCheckedOut(),
		Materials:      row.HasMaterials,
		Keywords:       row.Asset.Keywords,
		Description:    defaultDescription,
	}
	if view.Keywords == nil {
		view.Keywords = []string{}
	}

	if row.First != nil {
		view.Creator = row.First.Author.DisplayName()
		createdAt := row.First.Timestamp
		view.CreatedAt = &createdAt
	}
	if row.Latest != nil {
		view.LastModifiedBy = row.Latest.Author.DisplayName()
		if row.Latest.Version != "" {
			view.Version = row.Latest.Version
		}
		if row.Latest.Note != "" {
			view.Description = row.Latest.Note
		}
		updatedAt := row.Latest.Timestamp
		view.UpdatedAt = &updatedAt
	}
	return view
}
