package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateMetadata creates an asset, its first commit and the four seed
// versions in one unit of work.
func (s *assetService) CreateMetadata(ctx context.Context, req model.CreateMetadataRequest) (*model.AssetView, error) {
	req.AssetName = model.NormalizeAssetName(req.AssetName)
	if err := req.Validate(); err != nil {
		return nil, model.WithStage(model.NewValidationError(err), model.StageMetadata)
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return s.createInTx(ctx, tx, newAssetRecord(req.AssetName, req.AssetStructureVersion, req.HasTexture),
			req.Keywords, []model.CommitInput{req.Commit})
	})
	if err != nil {
		return nil, model.WithStage(err, model.StageMetadata)
	}

	log.Info().
		Str("asset", req.AssetName).
		Str("author", req.Commit.Author).
		Str("version", req.Commit.Version).
		Msg("asset created")

	return s.GetAsset(ctx, req.AssetName)
}

// ImportAsset creates an asset together with an existing history.
func (s *assetService) ImportAsset(ctx context.Context, req model.ImportRequest) (*model.AssetView, error) {
	req.AssetName = model.NormalizeAssetName(req.AssetName)
	if err := req.Validate(); err != nil {
		return nil, model.WithStage(model.NewValidationError(err), model.StageMetadata)
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return s.createInTx(ctx, tx, newAssetRecord(req.AssetName, req.AssetStructureVersion, req.HasTexture),
			req.Keywords, req.CommitHistory)
	})
	if err != nil {
		return nil, model.WithStage(err, model.StageMetadata)
	}

	log.Info().
		Str("asset", req.AssetName).
		Int("commits", len(req.CommitHistory)).
		Msg("asset imported")

	return s.GetAsset(ctx, req.AssetName)
}

func newAssetRecord(name, structureVersion string, hasTexture bool) *model.Asset {
	return &model.Asset{
		ID:               uuid.New(),
		Name:             name,
		StructureVersion: strings.TrimSpace(structureVersion),
		HasTexture:       hasTexture,
		ThumbnailKey:     model.ThumbnailKey(name),
	}
}

// createInTx inserts the asset and appends history in timestamp order.
// Seed versions belong to the earliest commit.
func (s *assetService) createInTx(ctx context.Context, tx repository.Tx, asset *model.Asset, keywords []string, history []model.CommitInput) error {
	if err := tx.InsertAsset(ctx, asset); err != nil {
		return err
	}

	if err := s.linkKeywords(ctx, tx, asset.ID, keywords); err != nil {
		return err
	}

	commits := make([]model.Commit, len(history))
	for i, in := range history {
		commits[i] = model.Commit{
			ID:            uuid.New(),
			AssetID:       asset.ID,
			AuthorPennKey: in.Author,
			Version:       strings.TrimSpace(in.Version),
			Note:          in.Note,
			Timestamp:     s.commitTime(in.Timestamp),
		}
	}
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Timestamp.Before(commits[j].Timestamp)
	})

	pennKeys := make([]string, len(commits))
	for i := range commits {
		pennKeys[i] = commits[i].AuthorPennKey
	}
	authors, err := resolveAuthors(ctx, tx, pennKeys)
	if err != nil {
		return err
	}

	for i := range commits {
		commits[i].AuthorPennKey = authors[strings.TrimSpace(commits[i].AuthorPennKey)].PennKey

		if err := tx.AppendCommit(ctx, &commits[i]); err != nil {
			return err
		}
	}

	initial := commits[0]
	for _, seed := range model.SeedVersions(asset.Name) {
		label := seed.Label
		if err := tx.RecordVersion(ctx, &model.AssetVersion{
			AssetID:      asset.ID,
			CommitID:     initial.ID,
			VariantLabel: &label,
			Filepath:     seed.Key,
			Version:      initial.Version,
		}); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMetadata records one version row per uploaded file, merges keywords
// and appends the commit. Writers of one asset are serialized by the row lock.
func (s *assetService) UpdateMetadata(ctx context.Context, req model.UpdateMetadataRequest) (*model.AssetView, error) {
	req.AssetName = model.NormalizeAssetName(req.AssetName)
	if len(req.VersionMap) == 0 {
		return nil, model.WithStage(model.NewNoFiles(), model.StageMetadata)
	}
	if err := req.Validate(); err != nil {
		return nil, model.WithStage(model.NewValidationError(err), model.StageMetadata)
	}

	var commit model.Commit
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		asset, err := tx.LockAssetByName(ctx, req.AssetName)
		if err != nil {
			return err
		}

		target, err := s.targetVersion(ctx, tx, asset.ID, req)
		if err != nil {
			return err
		}

		commit = model.Commit{
			ID:        uuid.New(),
			AssetID:   asset.ID,
			Version:   strings.TrimSpace(req.Commit.Version),
			Note:      req.Commit.Note,
			Timestamp: s.commitTime(req.Commit.Timestamp),
		}
		if commit.Version == "" {
			commit.Version = target
		}

		// Version rows go in before the commit. The store checks the commit
		// reference when the unit of work ends.
		keys := make([]string, 0, len(req.VersionMap))
		for key := range req.VersionMap {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			storeVersionID := req.VersionMap[key]
			if err := tx.RecordVersion(ctx, &model.AssetVersion{
				AssetID:        asset.ID,
				CommitID:       commit.ID,
				VariantLabel:   model.ClassifyKey(key),
				Filepath:       key,
				StoreVersionID: &storeVersionID,
				Version:        target,
			}); err != nil {
				return err
			}
		}

		if err := s.linkKeywords(ctx, tx, asset.ID, req.Keywords); err != nil {
			return err
		}

		author, err := tx.ResolveAuthor(ctx, req.Commit.Author)
		if err != nil {
			return err
		}
		commit.AuthorPennKey = author.PennKey

		return tx.AppendCommit(ctx, &commit)
	})
	if err != nil {
		return nil, model.WithStage(err, model.StageMetadata)
	}

	log.Info().
		Str("asset", req.AssetName).
		Str("author", commit.AuthorPennKey).
		Str("version", commit.Version).
		Int("files", len(req.VersionMap)).
		Msg("asset updated")

	return s.GetAsset(ctx, req.AssetName)
}

// targetVersion picks the label tagged on new version rows: an explicit
// newVersion, else a bump of the latest commit, else the commit's own label.
func (s *assetService) targetVersion(ctx context.Context, tx repository.Tx, assetID uuid.UUID, req model.UpdateMetadataRequest) (string, error) {
	if v := strings.TrimSpace(req.NewVersion); v != "" {
		return v, nil
	}

	if req.VersionIncrement != "" {
		base := model.DefaultVersion
		latest, err := tx.LatestCommit(ctx, assetID)
		if err != nil {
			return "", err
		}
		if latest != nil {
			base = latest.Version
		}
		next, err := model.NextVersion(base, req.VersionIncrement)
		if err != nil {
			return "", model.NewValidationMessage(err.Error())
		}
		return next, nil
	}

	return strings.TrimSpace(req.Commit.Version), nil
}

// linkKeywords resolves each distinct keyword and links it to the asset.
// Keywords are resolved in sorted order so concurrent writers take the
// keyword row locks in the same order.
func (s *assetService) linkKeywords(ctx context.Context, tx repository.Tx, assetID uuid.UUID, keywords []string) error {
	normalized, err := sortedKeywords(keywords)
	if err != nil {
		return err
	}
	for _, raw := range normalized {
		kw, err := tx.ResolveKeyword(ctx, raw)
		if err != nil {
			return err
		}
		if err := tx.LinkKeyword(ctx, assetID, kw.ID); err != nil {
			return err
		}
	}
	return nil
}

// sortedKeywords normalizes, dedupes and sorts raw keywords
func sortedKeywords(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		kw, err := model.NormalizeKeyword(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	sort.Strings(out)
	return out, nil
}

// resolveAuthors resolves each distinct pennkey in sorted order
func resolveAuthors(ctx context.Context, tx repository.Tx, pennKeys []string) (map[string]*model.Author, error) {
	keys := make([]string, 0, len(pennKeys))
	for _, k := range pennKeys {
		keys = append(keys, strings.TrimSpace(k))
	}
	sort.Strings(keys)

	authors := make(map[string]*model.Author, len(keys))
	for _, k := range keys {
		if _, ok := authors[k]; ok {
			continue
		}
		a, err := tx.ResolveAuthor(ctx, k)
		if err != nil {
			return nil, err
		}
		authors[k] = a
	}
	return authors, nil
}
