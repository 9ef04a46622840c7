package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFilter_Empty(t *testing.T) {
	where, args, err := ImageFilter{}.ToSql()
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestImageFilter_AlbumAndFeatured(t *testing.T) {
	albumID := uint(3)
	featured := true

	where, args, err := ImageFilter{AlbumID: &albumID, Featured: &featured}.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(images.album_id = ? AND images.featured = ?)", where)
	assert.Equal(t, []interface{}{uint(3), true}, args)
}

func TestImageFilter_QueryEscapesWildcards(t *testing.T) {
	where, args, err := ImageFilter{Query: "100%_off"}.ToSql()
	require.NoError(t, err)
	assert.Contains(t, where, "albums.name LIKE ?")
	require.Len(t, args, 4)
	assert.Equal(t, `%100\%\_off%`, args[0])
}

func TestImageFilter_Tag(t *testing.T) {
	where, args, err := ImageFilter{Tag: " Sea "}.ToSql()
	require.NoError(t, err)
	assert.Contains(t, where, "REPLACE(LOWER(images.tags)")
	assert.Equal(t, []interface{}{"%,sea,%"}, args)
}

func TestSortOrders(t *testing.T) {
	assert.True(t, IsValidSortOrder(SortTitleNat))
	assert.False(t, IsValidSortOrder("random"))
	assert.Equal(t, "images.sort_order ASC, images.id ASC", OrderClause("unknown"))
}
