package model

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewAssetNotFound("chair"), http.StatusNotFound},
		{NewAssetAlreadyExists("chair"), http.StatusConflict},
		{NewCheckedOutByOther("chair", "bob"), http.StatusConflict},
		{NewNoFiles(), http.StatusBadRequest},
		{NewStoreUnavailable(StageUpload, errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToHTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWithStage(t *testing.T) {
	base := NewAssetNotFound("chair")
	tagged := WithStage(base, StageCheckout)

	var ae *AssetError
	require.True(t, errors.As(tagged, &ae))
	assert.Equal(t, StageCheckout, ae.Stage)
	assert.Empty(t, base.Stage, "original error must not be mutated")

	// an existing stage wins
	assert.Equal(t, StageCheckout, WithStage(tagged, StageQuery).(*AssetError).Stage)

	foreign := WithStage(fmt.Errorf("wrapped: %w", errors.New("driver")), StageMetadata)
	assert.Equal(t, KindInternal, KindOf(foreign))
	assert.Contains(t, foreign.Error(), "[metadata/INTERNAL_ERROR]")

	assert.NoError(t, WithStage(nil, StageQuery))
}

func TestAssetError_IsKind(t *testing.T) {
	err := fmt.Errorf("checkout: %w", NewAlreadyCheckedOut(&Author{PennKey: "alice"}))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, CodeAlreadyCheckedOut, ToErrorCode(err))
	assert.Contains(t, err.Error(), "checked out by alice")
}
