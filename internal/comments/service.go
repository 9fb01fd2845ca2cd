package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inkpost/backend/internal/security"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrCommentNotFound covers missing, deleted and foreign-owned comments.
	ErrCommentNotFound = errors.New("comments: comment not found")
	// ErrInvalidComment indicates a create or update payload failed validation.
	ErrInvalidComment = errors.New("comments: invalid comment")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
)

// IDProvider issues identifiers for new comments.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the comment service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Sanitizer  security.Sanitizer
	Logger     *zap.Logger
}

// Service persists and queries post comments.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	sanitizer  security.Sanitizer
	logger     *zap.Logger
}

// NewService constructs the comment service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewContentSanitizer()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		sanitizer:  sanitizer,
		logger:     logger,
	}, nil
}

// Create inserts a comment authored by the provided user.
func (s *Service) Create(ctx context.Context, userID, postID, content string) (Comment, error) {
	if userID == "" {
		return Comment{}, errMissingUserID
	}
	if strings.TrimSpace(postID) == "" {
		return Comment{}, fmt.Errorf("%w: post id required", ErrInvalidComment)
	}
	if strings.TrimSpace(content) == "" {
		return Comment{}, fmt.Errorf("%w: content required", ErrInvalidComment)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Comment{}, err
	}

	now := s.clock().UTC().Unix()
	comment := Comment{
		ID:        id,
		UserID:    userID,
		PostID:    postID,
		Content:   s.sanitizer.Sanitize(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		s.logger.Error("comment create failed", zap.Error(err), zap.String("post_id", postID))
		return Comment{}, err
	}
	return comment, nil
}

// ListForPost returns a post's visible comments with author info, oldest first.
func (s *Service) ListForPost(ctx context.Context, postID string) ([]CommentView, error) {
	var views []CommentView
	err := s.db.WithContext(ctx).
		Table("comments AS c").
		Select("c.id AS comment_id, c.post_id, c.content, c.created_at, " +
			"u.name AS user_name, u.email AS user_email, u.image AS user_image").
		Joins("JOIN users u ON c.user_id = u.id").
		Where("c.post_id = ? AND c.is_deleted = ?", postID, false).
		Order("c.created_at ASC").
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Update rewrites an owned comment's content.
func (s *Service) Update(ctx context.Context, userID, commentID, content string) (Comment, error) {
	if userID == "" {
		return Comment{}, errMissingUserID
	}
	if strings.TrimSpace(content) == "" {
		return Comment{}, fmt.Errorf("%w: content required", ErrInvalidComment)
	}

	var comment Comment
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ? AND is_deleted = ?", commentID, userID, false).
			First(&comment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		if err != nil {
			return err
		}

		comment.Content = s.sanitizer.Sanitize(content)
		comment.UpdatedAt = s.clock().UTC().Unix()
		return tx.Save(&comment).Error
	})
	if txErr != nil {
		return Comment{}, txErr
	}
	return comment, nil
}

// Delete soft-deletes an owned comment.
func (s *Service) Delete(ctx context.Context, userID, commentID string) error {
	if userID == "" {
		return errMissingUserID
	}

	now := s.clock().UTC().Unix()
	result := s.db.WithContext(ctx).Model(&Comment{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", commentID, userID, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCommentNotFound
	}
	return nil
}
