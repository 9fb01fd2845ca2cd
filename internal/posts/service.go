package posts

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
	// ErrPostNotFound covers missing, unpublished and foreign-owned posts.
	ErrPostNotFound = errors.New("posts: post not found")
	// ErrInvalidPost indicates a create or update payload failed validation.
	ErrInvalidPost = errors.New("posts: invalid post")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
)

// IDProvider issues identifiers for new posts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the post service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Sanitizer  security.Sanitizer
	Logger     *zap.Logger
}

// Service persists and queries blog posts.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	sanitizer  security.Sanitizer
	logger     *zap.Logger
}

// NewService constructs the post service.
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

func (s *Service) validateInput(input PostInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidPost)
	}
	if strings.TrimSpace(input.Content) == "" {
		return fmt.Errorf("%w: content required", ErrInvalidPost)
	}
	return nil
}

// Create inserts a published post with a slug unique among existing posts.
// Slug selection and the insert share one transaction so concurrent creates
// with the same title cannot both claim the base slug.
func (s *Service) Create(ctx context.Context, authorID string, input PostInput) (Post, error) {
	if authorID == "" {
		return Post{}, errMissingUserID
	}
	if err := s.validateInput(input); err != nil {
		return Post{}, err
	}

	var post Post
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := slugsLike(tx, slugBase(input.Title))
		if err != nil {
			return err
		}

		id, err := s.idProvider.NewID()
		if err != nil {
			return err
		}

		now := s.clock().UTC().Unix()
		post = Post{
			ID:          id,
			UserID:      authorID,
			Title:       strings.TrimSpace(input.Title),
			Slug:        GenerateUniqueSlug(input.Title, existing),
			Content:     s.sanitizer.Sanitize(input.Content),
			Tags:        input.Tags,
			IsPublished: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.Create(&post).Error
	})
	if txErr != nil {
		s.logger.Error("post create failed", zap.Error(txErr), zap.String("user_id", authorID))
		return Post{}, txErr
	}

	s.logger.Info("post created", zap.String("post_id", post.ID), zap.String("slug", post.Slug))
	return post, nil
}

// List returns published posts, newest first.
func (s *Service) List(ctx context.Context) ([]Post, error) {
	var results []Post
	err := s.db.WithContext(ctx).
		Where("is_published = ? AND deleted_at IS NULL", true).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetBySlug returns the published post carrying the provided slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).
		Where("slug = ? AND is_published = ? AND deleted_at IS NULL", slug, true).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

// Update rewrites an owned post. A changed title regenerates the slug against
// the current slug set, keeping the post's own slug out of the collision set.
func (s *Service) Update(ctx context.Context, userID, postID string, input PostInput) (Post, error) {
	if userID == "" {
		return Post{}, errMissingUserID
	}
	if err := s.validateInput(input); err != nil {
		return Post{}, err
	}

	var post Post
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ? AND deleted_at IS NULL", postID, userID).
			First(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		if err != nil {
			return err
		}

		title := strings.TrimSpace(input.Title)
		if title != post.Title {
			existing, err := slugsLike(tx, slugBase(title))
			if err != nil {
				return err
			}
			delete(existing, post.Slug)
			post.Slug = GenerateUniqueSlug(title, existing)
		}

		post.Title = title
		post.Content = s.sanitizer.Sanitize(input.Content)
		post.Tags = input.Tags
		post.UpdatedAt = s.clock().UTC().Unix()
		return tx.Save(&post).Error
	})
	if txErr != nil {
		return Post{}, txErr
	}
	return post, nil
}

// Delete soft-deletes an owned post and unpublishes it.
func (s *Service) Delete(ctx context.Context, userID, postID string) error {
	if userID == "" {
		return errMissingUserID
	}

	now := s.clock().UTC().Unix()
	result := s.db.WithContext(ctx).Model(&Post{}).
		Where("id = ? AND user_id = ? AND deleted_at IS NULL", postID, userID).
		Updates(map[string]interface{}{
			"is_published": false,
			"deleted_at":   now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

func slugBase(title string) string {
	return strings.Trim(nonWordRunPattern.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

func slugsLike(tx *gorm.DB, base string) (map[string]struct{}, error) {
	var slugs []string
	if err := tx.Model(&Post{}).
		Where("slug LIKE ?", base+"%").
		Pluck("slug", &slugs).Error; err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		existing[slug] = struct{}{}
	}
	return existing, nil
}
