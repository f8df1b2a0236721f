package handler

import (
	assetModel "asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/author/service"
	"asset-library-backend/internal/shared/response"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type UserHandler struct {
	service service.ServiceInterface
}

func NewUserHandler(svc service.ServiceInterface) *UserHandler {
	return &UserHandler{
		service: svc,
	}
}

// RegisterRoutes mounts /users on v1
func (h *UserHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	users := v1.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.GET("/:pennkey", h.GetUser)
	}
}

// ════════════════════════════════════════════════════════════════
// LIST: GET /api/v1/users
// ════════════════════════════════════════════════════════════════

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Get users successfully", gin.H{"users": users})
}

// ════════════════════════════════════════════════════════════════
// DETAIL: GET /api/v1/users/:pennkey
// ════════════════════════════════════════════════════════════════

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("pennkey"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Get user successfully", gin.H{"user": user})
}

func writeError(c *gin.Context, err error) {
	status := assetModel.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("user request failed")
	}

	message := "Internal error"
	var ae *assetModel.AssetError
	if errors.As(err, &ae) {
		message = ae.Message
	}
	response.ErrorResponse(c, status, assetModel.ToErrorCode(err), message)
}
