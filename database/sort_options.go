package database

const (
	SortOrderAsc    = "order"
	SortTitleAsc    = "title_asc"
	SortTitleNat    = "title_nat"
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
)

const DefaultSortOrder = SortOrderAsc

// IsValidSortOrder checks if a string is a valid sort order constant
func IsValidSortOrder(order string) bool {
	switch order {
	case SortOrderAsc, SortTitleAsc, SortTitleNat, SortCreatedDesc, SortCreatedAsc:
		return true
	default:
		return false
	}
}

// OrderClause returns the SQL ORDER BY expression for a sort order. natural
// title ordering cannot be expressed in SQLite, callers sort those in memory.
func OrderClause(order string) string {
	switch order {
	case SortTitleAsc, SortTitleNat:
		return "images.title ASC, images.id ASC"
	case SortCreatedDesc:
		return "images.created_at DESC, images.id DESC"
	case SortCreatedAsc:
		return "images.created_at ASC, images.id ASC"
	default:
		return "images.sort_order ASC, images.id ASC"
	}
}
