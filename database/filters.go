package database

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// ImageFilter narrows an image listing. Zero values mean "no constraint".
// Queries using it must join albums so album-level columns are available.
type ImageFilter struct {
	AlbumID    *uint
	Featured   *bool
	Tag        string
	Query      string // matched against title, album name, description and tags
	PublicOnly bool
	Limit      int
	Offset     int
}

// ToSql builds the WHERE expression for the filter. An empty string means the
// filter matches everything.
func (f ImageFilter) ToSql() (string, []interface{}, error) {
	conds := sq.And{}

	if f.AlbumID != nil {
		conds = append(conds, sq.Eq{"images.album_id": *f.AlbumID})
	}
	if f.Featured != nil {
		conds = append(conds, sq.Eq{"images.featured": *f.Featured})
	}
	if f.PublicOnly {
		conds = append(conds, sq.Eq{"albums.is_public": true})
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		// tags are stored normalized as "a, b, c"
		conds = append(conds, sq.Expr("(',' || REPLACE(LOWER(images.tags), ', ', ',') || ',') LIKE ? ESCAPE '\\'", "%,"+escapeLike(tag)+",%"))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + escapeLike(q) + "%"
		conds = append(conds, sq.Or{
			sq.Expr("images.title LIKE ? ESCAPE '\\'", like),
			sq.Expr("albums.name LIKE ? ESCAPE '\\'", like),
			sq.Expr("images.description LIKE ? ESCAPE '\\'", like),
			sq.Expr("images.tags LIKE ? ESCAPE '\\'", like),
		})
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return conds.ToSql()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
