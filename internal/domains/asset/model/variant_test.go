package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestClassifyKey(t *testing.T) {
	tests := []struct {
		key  string
		want *string
	}{
		{"chair_01/chair_01.usda", strPtr(VariantSet)},
		{"chair_01/chair_01_LOD1.usda", strPtr(VariantLOD1)},
		{"chair_01/LODs/chair_01_LOD0.usda", strPtr(VariantLOD0)},
		{"deep/nested/dir/chair_01_LOD2.usda", strPtr(VariantLOD2)},
		{"chair_01/chair_01_LOD3.usda", strPtr(VariantSet)},
		{"textures/diffuse.png", nil},
		{"chair_01/chair_01.usd", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyKey(tt.key))
		})
	}
}

func TestSeedVersions(t *testing.T) {
	seeds := SeedVersions("chair")
	require.Len(t, seeds, 4)

	for _, s := range seeds {
		label := ClassifyKey(s.Key)
		require.NotNil(t, label, s.Key)
		assert.Equal(t, s.Label, *label)
	}
	assert.Equal(t, "chair/chair.usda", seeds[0].Key)
}

func TestLatestByVariant(t *testing.T) {
	set, lod0 := VariantSet, VariantLOD0
	versions := []AssetVersion{
		{Seq: 1, VariantLabel: &set, Filepath: "a", Version: "01.00.00"},
		{Seq: 2, VariantLabel: &lod0, Filepath: "b", Version: "01.00.00"},
		{Seq: 3, VariantLabel: &set, Filepath: "c", Version: "01.10.00"},
		{Seq: 4, VariantLabel: &set, Filepath: "d", Version: "01.02.00"},
		{Seq: 5, VariantLabel: &lod0, Filepath: "e", Version: "01.00.00"},
		{Seq: 6, Filepath: "f", Version: "01.00.00"},
	}

	latest := LatestByVariant(versions)
	require.Len(t, latest, 3)
	assert.Equal(t, "c", latest[VariantSet].Filepath, "numeric compare beats insertion order")
	assert.Equal(t, "e", latest[VariantLOD0].Filepath, "ties go to the later insert")
	assert.Equal(t, "f", latest[""].Filepath)
}

func TestHasMaterials(t *testing.T) {
	label := VariantSet
	withLabel, withoutLabel := uuid.New(), uuid.New()
	versions := []AssetVersion{
		{CommitID: withLabel, VariantLabel: &label},
		{CommitID: withoutLabel},
	}

	assert.True(t, HasMaterials(versions, withLabel))
	assert.False(t, HasMaterials(versions, withoutLabel))
	assert.False(t, HasMaterials(versions, uuid.New()))
}
