package model

import (
	"strings"

	"github.com/google/uuid"
)

// Variant labels
const (
	VariantSet  = "Variant Set"
	VariantLOD0 = "LOD0"
	VariantLOD1 = "LOD1"
	VariantLOD2 = "LOD2"

	// VariantExtension marks a file as part of the USD variant set.
	VariantExtension = ".usda"
)

var lodLabels = []string{VariantLOD0, VariantLOD1, VariantLOD2}

// ClassifyKey infers the variant label of an object-store key from its suffix.
//
//	chair/chair.usda           -> "Variant Set"
//	chair/LODs/chair_LOD1.usda -> "LOD1"
//	chair/textures/diffuse.png -> nil
//
// Directory depth plays no part.
func ClassifyKey(key string) *string {
	stem, ok := strings.CutSuffix(key, VariantExtension)
	if !ok {
		return nil
	}

	label := VariantSet
	for _, lod := range lodLabels {
		if strings.HasSuffix(stem, "_"+lod) {
			label = lod
			break
		}
	}
	return &label
}

// SeedVersion is a not-yet-uploaded stub created with a new asset.
type SeedVersion struct {
	Label string
	Key   string
}

// SeedVersions returns the four conventional stubs in a stable order.
func SeedVersions(assetName string) []SeedVersion {
	return []SeedVersion{
		{Label: VariantSet, Key: assetName + "/" + assetName + VariantExtension},
		{Label: VariantLOD0, Key: assetName + "/LODs/" + assetName + "_LOD0" + VariantExtension},
		{Label: VariantLOD1, Key: assetName + "/LODs/" + assetName + "_LOD1" + VariantExtension},
		{Label: VariantLOD2, Key: assetName + "/LODs/" + assetName + "_LOD2" + VariantExtension},
	}
}

// LabelOf returns the variant label or "" for unclassified rows.
func (v *AssetVersion) LabelOf() string {
	if v.VariantLabel == nil {
		return ""
	}
	return *v.VariantLabel
}

// LatestByVariant picks, for every distinct label, the row with the greatest
// version label; ties go to the later insert. Unclassified rows share key "".
func LatestByVariant(versions []AssetVersion) map[string]AssetVersion {
	latest := make(map[string]AssetVersion)
	for _, v := range versions {
		label := v.LabelOf()
		cur, ok := latest[label]
		if !ok {
			latest[label] = v
			continue
		}
		cmp := CompareVersions(v.Version, cur.Version)
		if cmp > 0 || (cmp == 0 && v.Seq > cur.Seq) {
			latest[label] = v
		}
	}
	return latest
}

// HasMaterials reports whether the given commit owns any classified row.
func HasMaterials(versions []AssetVersion, commitID uuid.UUID) bool {
	for _, v := range versions {
		if v.CommitID == commitID && v.VariantLabel != nil {
			return true
		}
	}
	return false
}
