package service

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"asset-library-backend/internal/infrastructure/archive"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBlobDown = errors.New("blob store down")

// fakeBlobs is an in-memory BlobStore. Keys containing failOn fail to upload.
type fakeBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	seq      int
	failOn   string
	presigns int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(key, f.failOn) {
		return "", errBlobDown
	}
	f.seq++
	f.objects[key] = append([]byte(nil), data...)
	return fmt.Sprintf("v%d", f.seq), nil
}

func (f *fakeBlobs) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeBlobs) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return data, nil
}

func (f *fakeBlobs) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeBlobs) PresignedURL(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigns++
	return "https://blobs.test/" + key + "?sig=1", nil
}

// fakeQueue records enqueued archive builds; a revision is queued once.
type fakeQueue struct {
	mu     sync.Mutex
	tasks  map[string]struct{}
	queued []string
}

func (q *fakeQueue) EnqueueBuildArchive(ctx context.Context, assetName, revision, requestedBy string) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	taskID := "archive:" + assetName + ":" + revision
	if _, dup := q.tasks[taskID]; dup {
		return taskID, false, nil
	}
	if q.tasks == nil {
		q.tasks = make(map[string]struct{})
	}
	q.tasks[taskID] = struct{}{}
	q.queued = append(q.queued, assetName)
	return taskID, true, nil
}

type fakeThumbnails struct{}

func (fakeThumbnails) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return []byte("normalized-png"), nil
}

type testEnv struct {
	svc   *assetService
	store *repository.MemoryStore
	blobs *fakeBlobs
	queue *fakeQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: repository.NewMemoryStore(),
		blobs: newFakeBlobs(),
		queue: &fakeQueue{},
	}
	env.svc = newAssetService(Deps{
		Store:      env.store,
		Blobs:      env.blobs,
		Archiver:   archive.NewZipBuilder(),
		Thumbnails: fakeThumbnails{},
		Queue:      env.queue,
	}, Config{UploadConcurrency: 4})
	env.svc.now = func() time.Time { return baseTime.Add(24 * time.Hour) }
	return env
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return baseTime.Add(time.Duration(hours) * time.Hour)
}

func (e *testEnv) create(t *testing.T, name, author string, ts time.Time, keywords ...string) *model.AssetView {
	t.Helper()
	view, err := e.svc.CreateMetadata(context.Background(), model.CreateMetadataRequest{
		AssetName:             name,
		AssetStructureVersion: "03.00.00",
		Keywords:              keywords,
		Commit: model.CommitInput{
			Author:    author,
			Timestamp: ts,
			Version:   model.DefaultVersion,
			Note:      "initial import of " + name,
		},
	})
	require.NoError(t, err)
	return view
}
