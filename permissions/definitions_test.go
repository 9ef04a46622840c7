package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAllPermissionKeys_ReturnsCopy(t *testing.T) {
	keys := GetAllPermissionKeys()
	assert.Contains(t, keys, UploadZip)
	assert.Len(t, keys, 8)

	keys[0] = "mutated"
	assert.NotEqual(t, "mutated", GetAllPermissionKeys()[0])
}

func TestIsValidPermissionKey(t *testing.T) {
	assert.True(t, IsValidPermissionKey(AlbumCreate))
	assert.False(t, IsValidPermissionKey("role.create"))
}
