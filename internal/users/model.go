package users

import "strings"

// User is the local identity record created on first successful login.
type User struct {
	ID        string `gorm:"column:id;primaryKey;size:190;not null"`
	GoogleID  string `gorm:"column:google_id;size:190;uniqueIndex;not null"`
	Email     string `gorm:"column:email;size:320;uniqueIndex;not null"`
	Name      string `gorm:"column:name;size:320"`
	AvatarURL string `gorm:"column:image;size:512"`
	CreatedAt int64  `gorm:"column:created_at;not null"`
	UpdatedAt int64  `gorm:"column:updated_at;not null"`
}

// TableName exposes the table backing user records.
func (User) TableName() string {
	return "users"
}

// Session records an issued token. The token itself is self-verifying;
// the row exists for audit and is not consulted during authorization.
type Session struct {
	ID        string `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string `gorm:"column:user_id;size:190;not null;index"`
	Token     string `gorm:"column:session_token;size:1024;uniqueIndex;not null"`
	ExpiresAt int64  `gorm:"column:expires;not null"`
}

// TableName exposes the table backing session records.
func (Session) TableName() string {
	return "sessions"
}

// LoginProfile carries the validated provider identity used for the upsert.
type LoginProfile struct {
	GoogleID  string
	Email     string
	Name      string
	AvatarURL string
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
