package handler

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"asset-library-backend/internal/domains/asset/service"
	"asset-library-backend/internal/infrastructure/archive"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlobs) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return fmt.Sprintf("ver-%d", len(m.objects)), nil
}

func (m *memBlobs) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memBlobs) Download(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key], nil
}

func (m *memBlobs) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memBlobs) PresignedURL(ctx context.Context, key string) (string, error) {
	return "https://blobs.test/" + key, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Stage   string          `json:"stage"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *repository.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	svc := service.NewAssetService(service.Deps{
		Store:    store,
		Blobs:    &memBlobs{objects: make(map[string][]byte)},
		Archiver: archive.NewZipBuilder(),
	}, service.Config{})

	router := gin.New()
	NewHandler(svc, 1<<20).RegisterRoutes(router.Group("/api/v1"))
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func createChair(t *testing.T, router *gin.Engine) {
	t.Helper()
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/assets/chair/metadata", map[string]any{
		"assetStructureVersion": "03.00.00",
		"keywords":              []string{"Wood"},
		"commit": map[string]any{
			"author":  "alice",
			"version": "01.00.00",
			"note":    "first",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, env.Success)
}

func TestHandler_CreateAndList(t *testing.T) {
	router, _ := newTestRouter(t)
	createChair(t, router)

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/assets?sortBy=name&search=wood", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var assets []model.AssetView
	require.NoError(t, json.Unmarshal(env.Data, &assets))
	require.Len(t, assets, 1)
	assert.Equal(t, "chair", assets[0].Name)
	assert.Equal(t, []string{"wood"}, assets[0].Keywords)

	rec, env = doJSON(t, router, http.MethodGet, "/api/v1/assets?sortBy=size", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.CodeValidation, env.Error.Code)
}

func TestHandler_CreateDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)
	createChair(t, router)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/assets/chair/metadata", map[string]any{
		"assetStructureVersion": "03.00.00",
		"commit":                map[string]any{"author": "bob", "version": "01.00.00"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.CodeAssetExists, env.Error.Code)
	assert.Equal(t, string(model.StageMetadata), env.Error.Stage)
}

func TestHandler_CheckoutConflict(t *testing.T) {
	router, store := newTestRouter(t)
	createChair(t, router)
	store.SeedAuthor(model.Author{PennKey: "bob"})

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/assets/chair/checkout", map[string]string{"pennkey": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/assets/chair/checkout", map[string]string{"pennkey": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.CodeAlreadyCheckedOut, env.Error.Code)
	assert.Equal(t, string(model.StageCheckout), env.Error.Stage)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/assets/chair/checkout", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.CodeValidation, env.Error.Code)
}

func TestHandler_CommitAndDownload(t *testing.T) {
	router, _ := newTestRouter(t)
	createChair(t, router)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range map[string]string{
		"chair.usda":           "#usda root",
		"LODs/chair_LOD0.usda": "#usda lod0",
	} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("paths", name))
	}
	require.NoError(t, mw.WriteField("metadata",
		`{"versionIncrement":"minor","commit":{"author":"bob","note":"lods"}}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets/chair/commit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var result model.CommitUploadResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Len(t, result.VersionMap, 2)
	require.NotNil(t, result.Asset)
	assert.Equal(t, "01.01.00", result.Asset.Version)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/assets/chair/download", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="chair.zip"`)

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"chair.usda", "LODs/chair_LOD0.usda"}, names)
}

func TestHandler_UploadWithoutFiles(t *testing.T) {
	router, _ := newTestRouter(t)
	createChair(t, router)

	rec, env := doJSON(t, router, http.MethodPut, "/api/v1/assets/chair/upload", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.CodeNoFiles, env.Error.Code)
	assert.Equal(t, string(model.StageUpload), env.Error.Stage)
}

func TestHandler_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/assets/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.CodeAssetNotFound, env.Error.Code)

	rec, env = doJSON(t, router, http.MethodGet, "/api/v1/commits/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.CodeValidation, env.Error.Code)
}
