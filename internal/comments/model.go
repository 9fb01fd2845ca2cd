package comments

// Comment is a user-authored reply attached to a post. Deletion is soft so
// moderation history survives.
type Comment struct {
	ID        string `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID    string `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	PostID    string `gorm:"column:post_id;size:190;not null;index" json:"post_id"`
	Content   string `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt int64  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt int64  `gorm:"column:updated_at;not null" json:"updated_at"`
	IsDeleted bool   `gorm:"column:is_deleted;not null;default:false" json:"-"`
	DeletedAt *int64 `gorm:"column:deleted_at" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// CommentView is a comment joined with its author's public profile fields.
type CommentView struct {
	CommentID     string `gorm:"column:comment_id" json:"comment_id"`
	PostID        string `gorm:"column:post_id" json:"post_id"`
	Content       string `gorm:"column:content" json:"content"`
	CreatedAt     int64  `gorm:"column:created_at" json:"created_at"`
	UserName      string `gorm:"column:user_name" json:"user_name"`
	UserEmail     string `gorm:"column:user_email" json:"user_email"`
	UserAvatarURL string `gorm:"column:user_image" json:"user_image"`
}
