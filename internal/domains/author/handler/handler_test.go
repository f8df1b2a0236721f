package handler

import (
	assetModel "asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/internal/domains/asset/repository"
	"asset-library-backend/internal/domains/author/service"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	store.SeedAuthor(assetModel.Author{PennKey: "alice", FirstName: "Alice", LastName: "Zed"})
	store.SeedAuthor(assetModel.Author{PennKey: "bob"})

	router := gin.New()
	NewUserHandler(service.NewUserService(store, 0)).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListUsers(t *testing.T) {
	rec := get(newRouter(), "/api/v1/users")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Users []struct {
				PennID   string `json:"pennId"`
				FullName string `json:"fullName"`
			} `json:"users"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Users, 2)

	names := map[string]string{}
	for _, u := range body.Data.Users {
		names[u.PennID] = u.FullName
	}
	assert.Equal(t, "Alice Zed", names["alice"])
	assert.Equal(t, "bob", names["bob"])
}

func TestGetUser_NotFound(t *testing.T) {
	rec := get(newRouter(), "/api/v1/users/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, assetModel.CodeAuthorNotFound, body.Error.Code)
}

func TestGetUser(t *testing.T) {
	rec := get(newRouter(), "/api/v1/users/alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"assetsCreated":[]`)
	assert.Contains(t, rec.Body.String(), `"pennKey":"alice"`)
}
