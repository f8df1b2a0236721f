package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	placeholderVersionID = "pending"
	thumbnailBaseName    = "thumbnail"
)

type pendingUpload struct {
	key         string
	contentType string
	data        []byte
}

// UploadFiles stores files under the asset folder and returns the version
// id the blob store assigned to each key.
func (s *assetService) UploadFiles(ctx context.Context, assetName string, files []model.UploadFile) (model.VersionMap, error) {
	name := model.NormalizeAssetName(assetName)
	if len(files) == 0 {
		return nil, model.WithStage(model.NewNoFiles(), model.StageUpload)
	}
	if _, err := s.getAsset(ctx, name, model.StageUpload); err != nil {
		return nil, err
	}

	uploads, err := s.prepareUploads(name, files)
	if err != nil {
		return nil, model.WithStage(err, model.StageUpload)
	}

	var (
		mu      sync.Mutex
		written = make(model.VersionMap, len(uploads))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)
	for _, u := range uploads {
		g.Go(func() error {
			versionID, err := s.blobs.Upload(gctx, u.key, u.data, u.contentType)
			if err != nil {
				return fmt.Errorf("upload %s: %w", u.key, err)
			}
			mu.Lock()
			written[u.key] = versionID
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).
			Str("asset", name).
			Int("uploaded", len(written)).
			Int("total", len(uploads)).
			Msg("upload failed")
		return written, withDetails(model.NewStoreUnavailable(model.StageUpload, err),
			map[string]any{"versionMap": written})
	}

	log.Info().Str("asset", name).Int("files", len(written)).Msg("files uploaded")
	return written, nil
}

// prepareUploads maps file names to object keys. A file named thumbnail.*
// is normalized and stored at the asset's thumbnail key.
func (s *assetService) prepareUploads(assetName string, files []model.UploadFile) ([]pendingUpload, error) {
	uploads := make([]pendingUpload, 0, len(files))
	seen := make(map[string]struct{}, len(files))

	for _, f := range files {
		raw := strings.ReplaceAll(strings.TrimSpace(f.Name), "\\", "/")
		rel := strings.TrimPrefix(path.Clean("/"+raw), "/")
		if rel == "" || hasParentSegment(raw) {
			return nil, model.NewValidationMessage(fmt.Sprintf("invalid file name '%s'", f.Name))
		}
		rel = strings.TrimPrefix(rel, assetName+"/")

		u := pendingUpload{
			key:         assetName + "/" + rel,
			contentType: f.ContentType,
			data:        f.Data,
		}
		if u.contentType == "" {
			u.contentType = "application/octet-stream"
		}

		if isThumbnail(rel) && s.thumbnails != nil {
			normalized, err := s.thumbnails.Normalize(f.Data)
			if err != nil {
				return nil, model.NewValidationMessage(fmt.Sprintf("thumbnail '%s' is not a readable image: %v", f.Name, err))
			}
			u.key = model.ThumbnailKey(assetName)
			u.contentType = "image/png"
			u.data = normalized
		}

		if _, dup := seen[u.key]; dup {
			return nil, model.NewValidationMessage(fmt.Sprintf("file '%s' appears more than once", u.key))
		}
		seen[u.key] = struct{}{}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func hasParentSegment(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isThumbnail(rel string) bool {
	if strings.Contains(rel, "/") {
		return false
	}
	ext := path.Ext(rel)
	return ext != "" && strings.TrimSuffix(rel, ext) == thumbnailBaseName
}

// CommitUpload uploads files and records them in one commit. If the upload
// succeeds but the metadata write fails, the error carries the version map
// so the caller can retry the metadata step alone.
//
// The thumbnail is not versioned: it is uploaded and reported in the result
// but gets no version row. An upload holding only a thumbnail records no commit.
func (s *assetService) CommitUpload(ctx context.Context, assetName string, files []model.UploadFile, meta model.UpdateMetadataRequest) (*model.CommitUploadResult, error) {
	meta.AssetName = model.NormalizeAssetName(assetName)
	if len(files) == 0 {
		return nil, model.WithStage(model.NewNoFiles(), model.StageUpload)
	}

	check := meta
	check.VersionMap = map[string]string{meta.AssetName: placeholderVersionID}
	if err := check.Validate(); err != nil {
		return nil, model.WithStage(model.NewValidationError(err), model.StageMetadata)
	}

	versionMap, err := s.UploadFiles(ctx, meta.AssetName, files)
	if err != nil {
		return &model.CommitUploadResult{VersionMap: versionMap}, err
	}

	meta.VersionMap = versionedFiles(meta.AssetName, versionMap)
	if len(meta.VersionMap) == 0 {
		log.Info().Str("asset", meta.AssetName).Msg("thumbnail replaced, no commit recorded")
		view, err := s.GetAsset(ctx, meta.AssetName)
		if err != nil {
			return &model.CommitUploadResult{VersionMap: versionMap}, err
		}
		return &model.CommitUploadResult{VersionMap: versionMap, Asset: view}, nil
	}

	view, err := s.UpdateMetadata(ctx, meta)
	if err != nil {
		log.Error().Err(err).
			Str("asset", meta.AssetName).
			Int("uploaded", len(versionMap)).
			Msg("files uploaded but metadata commit failed")
		return &model.CommitUploadResult{VersionMap: versionMap},
			withDetails(err, map[string]any{"versionMap": versionMap})
	}

	return &model.CommitUploadResult{VersionMap: versionMap, Asset: view}, nil
}

// versionedFiles is the version map without the asset's thumbnail
func versionedFiles(assetName string, versionMap model.VersionMap) model.VersionMap {
	thumb := model.ThumbnailKey(assetName)
	out := make(model.VersionMap, len(versionMap))
	for key, id := range versionMap {
		if key != thumb {
			out[key] = id
		}
	}
	return out
}

// collectFiles downloads every object under the asset folder. Names are
// relative to the folder.
func (s *assetService) collectFiles(ctx context.Context, assetName string) (map[string][]byte, error) {
	prefix := assetName + "/"
	keys, err := s.blobs.ListKeys(ctx, prefix)
	if err != nil {
		return nil, model.NewStoreUnavailable(model.StageDownload, err)
	}
	if len(keys) == 0 {
		return nil, model.WithStage(model.NewFilesNotFound(assetName), model.StageDownload)
	}

	var (
		mu    sync.Mutex
		files = make(map[string][]byte, len(keys))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			data, err := s.blobs.Download(gctx, key)
			if err != nil {
				return fmt.Errorf("download %s: %w", key, err)
			}
			mu.Lock()
			files[strings.TrimPrefix(key, prefix)] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, model.NewStoreUnavailable(model.StageDownload, err)
	}
	return files, nil
}

// DownloadArchive streams every file of the asset as one archive. Nothing
// is written to w unless all files were fetched.
func (s *assetService) DownloadArchive(ctx context.Context, assetName string, w io.Writer) error {
	name := model.NormalizeAssetName(assetName)
	if _, err := s.getAsset(ctx, name, model.StageDownload); err != nil {
		return err
	}

	files, err := s.collectFiles(ctx, name)
	if err != nil {
		return err
	}

	if err := s.archiver.Build(files, w); err != nil {
		return model.NewInternal(model.StageDownload, err)
	}
	return nil
}

// latestRevision returns the id of the asset's latest commit
func (s *assetService) latestRevision(ctx context.Context, name string) (uuid.UUID, error) {
	row, err := s.store.GetCatalogRow(ctx, name)
	if err != nil {
		return uuid.Nil, model.WithStage(err, model.StageDownload)
	}
	if row.Latest == nil {
		return uuid.Nil, model.WithStage(model.NewAssetNotFound(name), model.StageDownload)
	}
	return row.Latest.ID, nil
}

// BuildArchive packs the asset and stores the archive under its latest
// revision. An archive already stored for that revision is kept.
func (s *assetService) BuildArchive(ctx context.Context, assetName string) (string, error) {
	name := model.NormalizeAssetName(assetName)
	revision, err := s.latestRevision(ctx, name)
	if err != nil {
		return "", err
	}

	key := model.ArchiveKey(name, revision)
	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return "", model.NewStoreUnavailable(model.StageDownload, err)
	}
	if exists {
		log.Info().Str("asset", name).Str("key", key).Msg("archive already built")
		return key, nil
	}

	files, err := s.collectFiles(ctx, name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := s.archiver.Build(files, &buf); err != nil {
		return "", model.NewInternal(model.StageDownload, err)
	}

	if _, err := s.blobs.Upload(ctx, key, buf.Bytes(), "application/zip"); err != nil {
		return "", model.NewStoreUnavailable(model.StageDownload, err)
	}

	log.Info().Str("asset", name).Str("key", key).Int("files", len(files)).Msg("archive built")
	return key, nil
}

// EnqueueArchive schedules a background build of the latest revision
func (s *assetService) EnqueueArchive(ctx context.Context, assetName, requestedBy string) (*model.ArchiveStatus, error) {
	name := model.NormalizeAssetName(assetName)
	if s.queue == nil {
		return nil, model.NewInternal(model.StageDownload, errors.New("archive queue is not configured"))
	}
	revision, err := s.latestRevision(ctx, name)
	if err != nil {
		return nil, err
	}

	taskID, queued, err := s.queue.EnqueueBuildArchive(ctx, name, revision.String(), requestedBy)
	if err != nil {
		return nil, model.NewInternal(model.StageDownload, err)
	}

	return &model.ArchiveStatus{
		AssetName:  name,
		Revision:   revision.String(),
		TaskID:     taskID,
		Queued:     queued,
		ArchiveKey: model.ArchiveKey(name, revision),
	}, nil
}

// ArchiveURL presigns the archive of the asset's latest revision. An
// archive of an older revision is never served.
func (s *assetService) ArchiveURL(ctx context.Context, assetName string) (*model.ArchiveLink, error) {
	name := model.NormalizeAssetName(assetName)
	revision, err := s.latestRevision(ctx, name)
	if err != nil {
		return nil, err
	}

	key := model.ArchiveKey(name, revision)
	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return nil, model.NewStoreUnavailable(model.StageDownload, err)
	}
	if !exists {
		return nil, model.WithStage(model.NewArchiveNotReady(name), model.StageDownload)
	}

	url, err := s.blobs.PresignedURL(ctx, key)
	if err != nil {
		return nil, model.NewStoreUnavailable(model.StageDownload, err)
	}
	return &model.ArchiveLink{AssetName: name, Revision: revision.String(), Key: key, URL: url}, nil
}

// RefreshArchives enqueues a rebuild for every asset committed to within
// window. Returns how many builds were newly queued.
func (s *assetService) RefreshArchives(ctx context.Context, window time.Duration) (int, error) {
	if s.queue == nil {
		return 0, model.NewInternal(model.StageDownload, errors.New("archive queue is not configured"))
	}

	rows, err := s.store.ListCatalog(ctx)
	if err != nil {
		return 0, model.WithStage(err, model.StageQuery)
	}

	since := s.now().Add(-window)
	queued := 0
	for _, row := range rows {
		if row.Latest == nil || row.Latest.Timestamp.Before(since) {
			continue
		}
		_, ok, err := s.queue.EnqueueBuildArchive(ctx, row.Asset.Name, row.Latest.ID.String(), "scheduler")
		if err != nil {
			return queued, model.NewInternal(model.StageDownload, err)
		}
		if ok {
			queued++
		}
	}

	log.Info().Int("queued", queued).Dur("window", window).Msg("archive refresh scheduled")
	return queued, nil
}
