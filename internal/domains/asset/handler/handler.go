package handler

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/service"
	"asset-library-backend/internal/shared/response"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler - HTTP handler for the asset library
type Handler struct {
	service        service.ServiceInterface
	maxUploadBytes int64
}

// NewHandler - Constructor with DI
func NewHandler(svc service.ServiceInterface, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 512 << 20
	}
	return &Handler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes mounts the asset and commit routes on v1
func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	assets := v1.Group("/assets")
	{
		assets.GET("", h.ListAssets)
		assets.POST("/import", h.ImportAsset)
		assets.GET("/:name", h.GetAsset)
		assets.POST("/:name/metadata", h.CreateMetadata)
		assets.PUT("/:name/metadata", h.UpdateMetadata)
		assets.PUT("/:name/upload", h.UploadFiles)
		assets.POST("/:name/commit", h.CommitUpload)
		assets.POST("/:name/checkout", h.Checkout)
		assets.POST("/:name/checkin", h.Checkin)
		assets.GET("/:name/download", h.Download)
		assets.POST("/:name/archive", h.EnqueueArchive)
		assets.GET("/:name/archive", h.ArchiveURL)
		assets.GET("/:name/commits", h.ListAssetCommits)
		assets.GET("/:name/variants", h.LatestVariants)
	}

	commits := v1.Group("/commits")
	{
		commits.GET("", h.ListCommits)
		commits.GET("/:id", h.GetCommit)
	}
}

// ========================================
// CATALOG
// ========================================

// ListAssets - GET /api/v1/assets?search=&author=&checkedInOnly=&sortBy=
func (h *Handler) ListAssets(c *gin.Context) {
	var query model.CatalogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	assets, err := h.service.ListAssets(c.Request.Context(), query)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, "Get assets successfully", assets, &response.Meta{Total: len(assets)})
}

// GetAsset - GET /api/v1/assets/:name
func (h *Handler) GetAsset(c *gin.Context) {
	asset, err := h.service.GetAsset(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Get asset successfully", asset)
}

// ========================================
// METADATA
// ========================================

// CreateMetadata - POST /api/v1/assets/:name/metadata
func (h *Handler) CreateMetadata(c *gin.Context) {
	var req model.CreateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	req.AssetName = c.Param("name")

	asset, err := h.service.CreateMetadata(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Asset created successfully", asset)
}

// UpdateMetadata - PUT /api/v1/assets/:name/metadata
func (h *Handler) UpdateMetadata(c *gin.Context) {
	var req model.UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	req.AssetName = c.Param("name")

	asset, err := h.service.UpdateMetadata(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Asset updated successfully", asset)
}

// ImportAsset - POST /api/v1/assets/import
func (h *Handler) ImportAsset(c *gin.Context) {
	var req model.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	asset, err := h.service.ImportAsset(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Asset imported successfully", asset)
}

// ========================================
// CHECKOUT
// ========================================

// Checkout - POST /api/v1/assets/:name/checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req model.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	state, err := h.service.Checkout(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Asset checked out successfully", state)
}

// Checkin - POST /api/v1/assets/:name/checkin
func (h *Handler) Checkin(c *gin.Context) {
	var req model.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	state, err := h.service.Checkin(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Asset checked in successfully", state)
}

// ========================================
// TRANSFER
// ========================================

// UploadFiles - PUT /api/v1/assets/:name/upload (multipart "files", optional "paths")
func (h *Handler) UploadFiles(c *gin.Context) {
	files, err := h.readFiles(c)
	if err != nil {
		handleError(c, err)
		return
	}

	versionMap, err := h.service.UploadFiles(c.Request.Context(), c.Param("name"), files)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Successfully uploaded", gin.H{"versionMap": versionMap})
}

// CommitUpload - POST /api/v1/assets/:name/commit (multipart files + "metadata" JSON)
func (h *Handler) CommitUpload(c *gin.Context) {
	files, err := h.readFiles(c)
	if err != nil {
		handleError(c, err)
		return
	}

	var meta model.UpdateMetadataRequest
	raw := c.PostForm("metadata")
	if raw == "" {
		handleError(c, model.WithStage(model.NewValidationMessage("metadata field is required"), model.StageMetadata))
		return
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		handleError(c, model.WithStage(model.NewValidationMessage("metadata is not valid JSON"), model.StageMetadata))
		return
	}

	result, err := h.service.CommitUpload(c.Request.Context(), c.Param("name"), files, meta)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Asset committed successfully", result)
}

// Download - GET /api/v1/assets/:name/download
// The archive is assembled in memory so a failure can still be reported as JSON.
func (h *Handler) Download(c *gin.Context) {
	name := model.NormalizeAssetName(c.Param("name"))

	var buf bytes.Buffer
	if err := h.service.DownloadArchive(c.Request.Context(), name, &buf); err != nil {
		handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, name))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// EnqueueArchive - POST /api/v1/assets/:name/archive
func (h *Handler) EnqueueArchive(c *gin.Context) {
	var req struct {
		PennKey string `json:"pennkey"`
	}
	// body is optional
	_ = c.ShouldBindJSON(&req)

	status, err := h.service.EnqueueArchive(c.Request.Context(), c.Param("name"), req.PennKey)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, "Archive build scheduled", status)
}

// ArchiveURL - GET /api/v1/assets/:name/archive
func (h *Handler) ArchiveURL(c *gin.Context) {
	link, err := h.service.ArchiveURL(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Get archive successfully", link)
}

// ========================================
// HISTORY
// ========================================

// ListAssetCommits - GET /api/v1/assets/:name/commits
func (h *Handler) ListAssetCommits(c *gin.Context) {
	commits, err := h.service.ListAssetCommits(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, "Get commits successfully", commits, &response.Meta{Total: len(commits)})
}

// LatestVariants - GET /api/v1/assets/:name/variants
func (h *Handler) LatestVariants(c *gin.Context) {
	variants, err := h.service.LatestVariants(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Get variants successfully", variants)
}

// ListCommits - GET /api/v1/commits
func (h *Handler) ListCommits(c *gin.Context) {
	commits, err := h.service.ListCommits(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, "Get commits successfully", commits, &response.Meta{Total: len(commits)})
}

// GetCommit - GET /api/v1/commits/:id
func (h *Handler) GetCommit(c *gin.Context) {
	commit, err := h.service.GetCommit(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Get commit successfully", commit)
}

// ========================================
// HELPERS
// ========================================

// readFiles reads the multipart "files" field. A "paths" field with one
// entry per file overrides the browser-supplied base names.
func (h *Handler) readFiles(c *gin.Context) ([]model.UploadFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.WithStage(model.NewValidationMessage("upload exceeds the size limit"), model.StageUpload)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, model.WithStage(model.NewNoFiles(), model.StageUpload)
		}
		return nil, model.WithStage(model.NewValidationMessage("invalid multipart form"), model.StageUpload)
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, model.WithStage(model.NewNoFiles(), model.StageUpload)
	}
	paths := form.Value["paths"]
	if len(paths) != 0 && len(paths) != len(headers) {
		return nil, model.WithStage(model.NewValidationMessage("paths must list one entry per file"), model.StageUpload)
	}

	files := make([]model.UploadFile, 0, len(headers))
	for i, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, model.NewInternal(model.StageUpload, err)
		}
		name := fh.Filename
		if len(paths) != 0 {
			name = paths[i]
		}
		files = append(files, model.UploadFile{
			Name:        name,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleError writes an AssetError as the standard error envelope
func handleError(c *gin.Context, err error) {
	status := model.ToHTTPStatus(err)

	var ae *model.AssetError
	if !errors.As(err, &ae) {
		ae = model.NewInternal("", err)
	}

	message := ae.Message
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Str("stage", string(ae.Stage)).
			Msg("asset request failed")
	}

	response.StagedError(c, status, ae.Code, message, string(ae.Stage), ae.Details)
}
