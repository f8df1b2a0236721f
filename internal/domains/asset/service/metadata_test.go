package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMetadata_SeedsAsset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	view := env.create(t, "chair_01", "alice", at(0), "Wood", "wood", " WOOD ", "Furniture")

	assert.Equal(t, "chair_01", view.Name)
	assert.Equal(t, "01.00.00", view.Version)
	assert.Equal(t, "alice", view.Creator)
	assert.Equal(t, "alice", view.LastModifiedBy)
	assert.Equal(t, []string{"furniture", "wood"}, view.Keywords)
	assert.True(t, view.Materials)
	assert.False(t, view.IsCheckedOut)
	assert.Equal(t, "initial import of chair_01", view.Description)
	require.NotNil(t, view.CreatedAt)
	assert.True(t, at(0).Equal(*view.CreatedAt))

	variants, err := env.svc.LatestVariants(ctx, "chair_01")
	require.NoError(t, err)
	assert.Len(t, variants, 4)
	assert.Equal(t, "chair_01/LODs/chair_01_LOD1.usda", variants[model.VariantLOD1].Filepath)
	assert.Nil(t, variants[model.VariantSet].StoreVersionID)

	commits, err := env.svc.ListAssetCommits(ctx, "chair_01")
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "alice", commits[0].PennKey)
	assert.True(t, commits[0].HasMaterials)
}

func TestCreateMetadata_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "chair_01", "alice", at(0))

	_, err := env.svc.CreateMetadata(context.Background(), model.CreateMetadataRequest{
		AssetName:             "chair_01",
		AssetStructureVersion: "03.00.00",
		Commit:                model.CommitInput{Author: "bob", Version: "01.00.00"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))
	assert.Equal(t, model.CodeAssetExists, model.ToErrorCode(err))

	authors, err := env.store.ListAuthors(context.Background())
	require.NoError(t, err)
	assert.Len(t, authors, 1, "failed create must not leave the new author behind")
}

func TestCreateMetadata_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateMetadata(context.Background(), model.CreateMetadataRequest{
		AssetName:             "chair_01",
		AssetStructureVersion: "03.00.00",
		Commit:                model.CommitInput{Version: "01.00.00"},
	})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = env.svc.GetAsset(context.Background(), "chair_01")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestCreateMetadata_BadKeywordRollsBack(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateMetadata(context.Background(), model.CreateMetadataRequest{
		AssetName:             "lamp",
		AssetStructureVersion: "03.00.00",
		Keywords:              []string{"ok", strings.Repeat("x", model.MaxKeywordLength+1)},
		Commit:                model.CommitInput{Author: "alice", Version: "01.00.00"},
	})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = env.store.GetAssetByName(context.Background(), "lamp")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestUpdateMetadata_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "chair_01", "alice", at(0), "wood")

	view, err := env.svc.UpdateMetadata(ctx, model.UpdateMetadataRequest{
		AssetName:        "chair_01",
		VersionIncrement: model.IncrementMinor,
		VersionMap:       map[string]string{"chair_01/chair_01.usda": "v-abc"},
		Keywords:         []string{"Oak"},
		Commit:           model.CommitInput{Author: "bob", Timestamp: at(5), Note: "new legs"},
	})
	require.NoError(t, err)

	assert.Equal(t, "01.01.00", view.Version)
	assert.Equal(t, "alice", view.Creator)
	assert.Equal(t, "bob", view.LastModifiedBy)
	assert.Equal(t, "new legs", view.Description)
	assert.Equal(t, []string{"oak", "wood"}, view.Keywords)
	require.NotNil(t, view.UpdatedAt)
	assert.True(t, at(5).Equal(*view.UpdatedAt))
	assert.True(t, view.Materials)

	variants, err := env.svc.LatestVariants(ctx, "chair_01")
	require.NoError(t, err)
	set := variants[model.VariantSet]
	assert.Equal(t, "01.01.00", set.Version)
	require.NotNil(t, set.StoreVersionID)
	assert.Equal(t, "v-abc", *set.StoreVersionID)
	assert.Equal(t, "01.00.00", variants[model.VariantLOD0].Version)

	commits, err := env.svc.ListAssetCommits(ctx, "chair_01")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "01.01.00", commits[0].VersionNum)
	assert.Equal(t, "01.00.00", commits[1].VersionNum)
}

func TestUpdateMetadata_TargetVersion(t *testing.T) {
	tests := []struct {
		name     string
		req      model.UpdateMetadataRequest
		wantTag  string
		wantHead string
	}{
		{
			name:     "major bump",
			req:      model.UpdateMetadataRequest{VersionIncrement: model.IncrementMajor},
			wantTag:  "02.00.00",
			wantHead: "02.00.00",
		},
		{
			name:     "patch bump",
			req:      model.UpdateMetadataRequest{VersionIncrement: model.IncrementPatch},
			wantTag:  "01.00.01",
			wantHead: "01.00.01",
		},
		{
			name:     "explicit new version",
			req:      model.UpdateMetadataRequest{NewVersion: "05.00.00"},
			wantTag:  "05.00.00",
			wantHead: "05.00.00",
		},
		{
			name: "commit label differs from file tag",
			req: model.UpdateMetadataRequest{
				NewVersion: "01.02.00",
				Commit:     model.CommitInput{Version: "01.02.00-rc"},
			},
			wantTag:  "01.02.00",
			wantHead: "01.02.00-rc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.create(t, "table", "alice", at(0))

			req := tt.req
			req.AssetName = "table"
			req.VersionMap = map[string]string{"table/table.usda": "v1"}
			req.Commit.Author = "alice"
			req.Commit.Timestamp = at(1)

			view, err := env.svc.UpdateMetadata(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHead, view.Version)

			variants, err := env.svc.LatestVariants(ctx, "table")
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, variants[model.VariantSet].Version)
		})
	}
}

func TestUpdateMetadata_UnknownAsset(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.UpdateMetadata(context.Background(), model.UpdateMetadataRequest{
		AssetName:  "ghost",
		NewVersion: "01.00.00",
		VersionMap: map[string]string{"ghost/ghost.usda": "v1"},
		Commit:     model.CommitInput{Author: "alice"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Equal(t, model.CodeAssetNotFound, model.ToErrorCode(err))
}

func TestUpdateMetadata_NoFiles(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "chair_01", "alice", at(0))

	_, err := env.svc.UpdateMetadata(context.Background(), model.UpdateMetadataRequest{
		AssetName:  "chair_01",
		NewVersion: "01.01.00",
		Commit:     model.CommitInput{Author: "alice"},
	})
	require.Error(t, err)
	assert.Equal(t, model.CodeNoFiles, model.ToErrorCode(err))
}

func TestUpdateMetadata_FailureLeavesNoPartialWrites(t *testing.T) {
	badKeywords := map[string][]string{
		"empty keyword":     {"oak", "   "},
		"oversized keyword": {strings.Repeat("k", model.MaxKeywordLength+1)},
	}

	for name, keywords := range badKeywords {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.create(t, "chair_01", "alice", at(0), "wood")
			before, err := env.store.GetAssetByName(ctx, "chair_01")
			require.NoError(t, err)

			_, err = env.svc.UpdateMetadata(ctx, model.UpdateMetadataRequest{
				AssetName:  "chair_01",
				NewVersion: "01.01.00",
				VersionMap: map[string]string{
					"chair_01/chair_01.usda":           "v1",
					"chair_01/LODs/chair_01_LOD0.usda": "v2",
				},
				Keywords: keywords,
				Commit:   model.CommitInput{Author: "carol", Timestamp: at(2)},
			})
			require.Error(t, err)
			assert.Equal(t, model.KindValidation, model.KindOf(err))

			versions, err := env.store.ListVersions(ctx, before.ID)
			require.NoError(t, err)
			assert.Len(t, versions, 4, "only the seed rows may exist")

			commits, err := env.svc.ListAssetCommits(ctx, "chair_01")
			require.NoError(t, err)
			assert.Len(t, commits, 1)

			view, err := env.svc.GetAsset(ctx, "chair_01")
			require.NoError(t, err)
			assert.Equal(t, "01.00.00", view.Version)
			assert.Equal(t, []string{"wood"}, view.Keywords)

			_, err = env.store.GetAuthor(ctx, "carol")
			assert.True(t, errors.Is(err, model.ErrNotFound))
		})
	}
}

func TestImportAsset_OrdersHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	view, err := env.svc.ImportAsset(ctx, model.ImportRequest{
		AssetName:             "sofa",
		AssetStructureVersion: "03.00.00",
		Keywords:              []string{"fabric"},
		CommitHistory: []model.CommitInput{
			{Author: "bob", Timestamp: at(10), Version: "01.01.00", Note: "second"},
			{Author: "alice", Timestamp: at(1), Version: "01.00.00", Note: "first"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", view.Creator)
	assert.Equal(t, "bob", view.LastModifiedBy)
	assert.Equal(t, "01.01.00", view.Version)
	assert.Equal(t, "second", view.Description)
	// seed rows belong to the earliest commit
	assert.False(t, view.Materials)

	commits, err := env.svc.ListAssetCommits(ctx, "sofa")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "second", commits[0].Notes)
	assert.True(t, commits[1].HasMaterials)
}

func TestImportAsset_RequiresHistory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ImportAsset(context.Background(), model.ImportRequest{
		AssetName:             "sofa",
		AssetStructureVersion: "03.00.00",
	})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

// recordingTx notes the order keywords and authors are resolved in
type recordingTx struct {
	repository.Tx
	keywords []string
	authors  []string
}

func (r *recordingTx) ResolveKeyword(ctx context.Context, raw string) (*model.Keyword, error) {
	r.keywords = append(r.keywords, raw)
	return r.Tx.ResolveKeyword(ctx, raw)
}

func (r *recordingTx) ResolveAuthor(ctx context.Context, pennKey string) (*model.Author, error) {
	r.authors = append(r.authors, pennKey)
	return r.Tx.ResolveAuthor(ctx, pennKey)
}

func TestLinkKeywords_ResolvesSortedAndDistinct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "chair_01", "alice", at(0))
	asset, err := env.store.GetAssetByName(ctx, "chair_01")
	require.NoError(t, err)

	rec := &recordingTx{}
	err = env.store.WithTx(ctx, func(tx repository.Tx) error {
		rec.Tx = tx
		return env.svc.linkKeywords(ctx, rec, asset.ID, []string{"Wood", "oak", " wood ", "Birch"})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"birch", "oak", "wood"}, rec.keywords)

	got, err := env.store.GetAssetByName(ctx, "chair_01")
	require.NoError(t, err)
	assert.Equal(t, []string{"birch", "oak", "wood"}, got.Keywords)
}

func TestCreateInTx_ResolvesAuthorsSorted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := &recordingTx{}
	err := env.store.WithTx(ctx, func(tx repository.Tx) error {
		rec.Tx = tx
		return env.svc.createInTx(ctx, rec, newAssetRecord("sofa", "03.00.00", false), nil, []model.CommitInput{
			{Author: "zed", Timestamp: at(1), Version: "01.00.00"},
			{Author: "bob", Timestamp: at(2), Version: "01.01.00"},
			{Author: "zed", Timestamp: at(3), Version: "01.02.00"},
			{Author: "amy", Timestamp: at(4), Version: "01.03.00"},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "bob", "zed"}, rec.authors)

	commits, err := env.svc.ListAssetCommits(ctx, "sofa")
	require.NoError(t, err)
	require.Len(t, commits, 4)
	assert.Equal(t, "01.03.00", commits[0].VersionNum)
}

func TestUpdateMetadata_ConcurrentWriters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "chair_01", "alice", at(0))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.UpdateMetadata(ctx, model.UpdateMetadataRequest{
				AssetName:        "chair_01",
				VersionIncrement: model.IncrementPatch,
				VersionMap:       map[string]string{"chair_01/chair_01.usda": fmt.Sprintf("v-%d", i)},
				Keywords:         []string{"oak", fmt.Sprintf("batch-%d", i)},
				Commit:           model.CommitInput{Author: fmt.Sprintf("writer%d", i), Note: "parallel"},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	asset, err := env.store.GetAssetByName(ctx, "chair_01")
	require.NoError(t, err)
	commits, err := env.store.ListCommits(ctx, repository.CommitFilter{AssetID: &asset.ID})
	require.NoError(t, err)
	require.Len(t, commits, writers+1)

	commitVersion := make(map[string]string, len(commits))
	labels := make(map[string]struct{}, len(commits))
	for _, c := range commits {
		commitVersion[c.ID.String()] = c.Version
		labels[c.Version] = struct{}{}
	}
	assert.Len(t, labels, writers+1)

	versions, err := env.store.ListVersions(ctx, asset.ID)
	require.NoError(t, err)
	written := 0
	for _, v := range versions {
		label, ok := commitVersion[v.CommitID.String()]
		require.True(t, ok, "version %s references an unknown commit", v.Filepath)
		assert.Equal(t, label, v.Version)
		if v.Filepath == "chair_01/chair_01.usda" && v.StoreVersionID != nil && strings.HasPrefix(*v.StoreVersionID, "v-") {
			written++
		}
	}
	assert.Equal(t, writers, written)

	view, err := env.svc.GetAsset(ctx, "chair_01")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("01.00.%02d", writers), view.Version)
	assert.Len(t, view.Keywords, writers+1)
}
