package posts

// Post models a published article. Timestamps are unix seconds; deletion is
// a soft delete so slugs stay reserved.
type Post struct {
	ID          string   `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID      string   `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	Title       string   `gorm:"column:title;size:512;not null" json:"title"`
	Slug        string   `gorm:"column:slug;size:512;uniqueIndex;not null" json:"slug"`
	Content     string   `gorm:"column:content;type:text;not null" json:"content"`
	Tags        []string `gorm:"column:tags;type:text;serializer:json" json:"tags"`
	Views       int64    `gorm:"column:views;not null;default:0" json:"views"`
	IsPublished bool     `gorm:"column:is_published;not null;default:true" json:"is_published"`
	CreatedAt   int64    `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   int64    `gorm:"column:updated_at;not null" json:"updated_at"`
	DeletedAt   *int64   `gorm:"column:deleted_at" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// PostInput is the client-supplied payload for creating or updating a post.
type PostInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}
