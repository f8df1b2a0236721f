package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"context"
	"sort"

	"github.com/google/uuid"
)

// unclassifiedVariant is the LatestVariants key for rows without a label
const unclassifiedVariant = "unclassified"

// ListAssetCommits returns the history of one asset, newest first
func (s *assetService) ListAssetCommits(ctx context.Context, assetName string) ([]model.CommitView, error) {
	asset, err := s.getAsset(ctx, model.NormalizeAssetName(assetName), model.StageQuery)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListCommits(ctx, repository.CommitFilter{AssetID: &asset.ID})
	if err != nil {
		return nil, model.WithStage(err, model.StageQuery)
	}
	return toCommitViews(records), nil
}

// ListCommits returns every commit of the library, newest first
func (s *assetService) ListCommits(ctx context.Context) ([]model.CommitView, error) {
	records, err := s.store.ListCommits(ctx, repository.CommitFilter{})
	if err != nil {
		return nil, model.WithStage(err, model.StageQuery)
	}
	return toCommitViews(records), nil
}

// GetCommit returns one commit with its author and file rows
func (s *assetService) GetCommit(ctx context.Context, id string) (*model.CommitDetail, error) {
	commitID, err := uuid.Parse(id)
	if err != nil {
		return nil, model.WithStage(model.NewValidationMessage("commit id must be a UUID"), model.StageQuery)
	}

	record, versions, err := s.store.GetCommit(ctx, commitID)
	if err != nil {
		return nil, model.WithStage(err, model.StageQuery)
	}

	sort.SliceStable(versions, func(i, j int) bool { return versions[i].Filepath < versions[j].Filepath })

	sublayers := make([]model.SublayerView, 0, len(versions))
	for _, v := range versions {
		sublayers = append(sublayers, toSublayerView(v))
	}

	return &model.CommitDetail{
		CommitView:  toCommitView(*record),
		AuthorName:  record.Author.FullName(),
		AuthorEmail: record.Author.Email,
		AssetID:     record.AssetID.String(),
		Sublayers:   sublayers,
	}, nil
}

// LatestVariants returns the newest file row of every variant label
func (s *assetService) LatestVariants(ctx context.Context, assetName string) (map[string]model.SublayerView, error) {
	asset, err := s.getAsset(ctx, model.NormalizeAssetName(assetName), model.StageQuery)
	if err != nil {
		return nil, err
	}

	versions, err := s.store.ListVersions(ctx, asset.ID)
	if err != nil {
		return nil, model.WithStage(err, model.StageQuery)
	}

	out := make(map[string]model.SublayerView)
	for label, v := range model.LatestByVariant(versions) {
		if label == "" {
			label = unclassifiedVariant
		}
		out[label] = toSublayerView(v)
	}
	return out, nil
}

func toCommitViews(records []model.CommitRecord) []model.CommitView {
	views := make([]model.CommitView, 0, len(records))
	for _, r := range records {
		views = append(views, toCommitView(r))
	}
	return views
}

func toCommitView(r model.CommitRecord) model.CommitView {
	return model.CommitView{
		CommitID:     r.ID.String(),
		PennKey:      r.AuthorPennKey,
		VersionNum:   r.Version,
		Notes:        r.Note,
		CommitDate:   r.Timestamp,
		HasMaterials: r.HasMaterials,
		AssetName:    r.AssetName,
	}
}

func toSublayerView(v model.AssetVersion) model.SublayerView {
	return model.SublayerView{
		ID:             v.ID.String(),
		VersionName:    v.VariantLabel,
		Filepath:       v.Filepath,
		StoreVersionID: v.StoreVersionID,
		Version:        v.Version,
	}
}
