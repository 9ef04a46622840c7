package models

// Article is the minimal target of an image's related-article links.
type Article struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title string `gorm:"not null" json:"title"`
	Slug  string `gorm:"not null;uniqueIndex" json:"slug"`
}

func (Article) TableName() string {
	return "articles"
}
