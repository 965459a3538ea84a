package diff

import (
	"testing"

	"lvcs/internal/patch"

	"github.com/stretchr/testify/assert"
)

func TestManifests(t *testing.T) {
	v1 := patch.Manifest{
		"common": "shared.bin",
		"old":    "only-v1.bin",
		"moved":  "before/m.bin",
	}
	v2 := patch.Manifest{
		"common": "shared.bin",
		"new":    "only-v2.bin",
		"moved":  "after/m.bin",
	}

	plan := Manifests(v1, v2)

	assert.Equal(t, []patch.Entry{
		{Path: "after/m.bin", Fingerprint: "moved"},
		{Path: "only-v2.bin", Fingerprint: "new"},
	}, plan.Link)
	assert.Equal(t, []patch.Entry{
		{Path: "before/m.bin", Fingerprint: "moved"},
		{Path: "only-v1.bin", Fingerprint: "old"},
	}, plan.Unlink)
	assert.Equal(t, []patch.Entry{{Path: "shared.bin", Fingerprint: "common"}}, plan.Keep)

	assert.Equal(t, Stats{Additions: 2, Deletions: 2, Unchanged: 1}, plan.Stats())
	assert.Equal(t, []string{"moved", "old"}, plan.Unlinked())
	assert.False(t, plan.Empty())
}

func TestManifestsFromEmpty(t *testing.T) {
	v1 := patch.Manifest{"a": "a.bin", "b": "b.bin"}

	plan := Manifests(nil, v1)
	assert.Len(t, plan.Link, 2)
	assert.Empty(t, plan.Unlink)

	same := Manifests(v1, v1)
	assert.True(t, same.Empty())
	assert.Len(t, same.Keep, 2)
	assert.Empty(t, same.Unlinked())
}

func TestPathReusedByOtherContent(t *testing.T) {
	v1 := patch.Manifest{"x": "file.bin"}
	v2 := patch.Manifest{"y": "file.bin"}

	plan := Manifests(v1, v2)
	assert.Equal(t, []patch.Entry{{Path: "file.bin", Fingerprint: "y"}}, plan.Link)
	assert.Equal(t, []patch.Entry{{Path: "file.bin", Fingerprint: "x"}}, plan.Unlink)
}
