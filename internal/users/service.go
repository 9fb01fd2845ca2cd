package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrInvalidProfile indicates the login profile lacked a usable identifier.
	ErrInvalidProfile = errors.New("users: invalid login profile")
	// ErrUserNotFound indicates no local user matched the supplied identity.
	ErrUserNotFound = errors.New("users: user not found")
)

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv4 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// ServiceConfig describes the dependencies required for user persistence.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Service manages local user records and their issued sessions.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: idProvider,
	}, nil
}

// RecordLogin upserts the user matched by email and inserts a session row for
// the issued token. Both writes happen in one transaction; a failure rolls
// back the upsert so no partial login state persists.
func (s *Service) RecordLogin(ctx context.Context, profile LoginProfile, token string, expiresAt time.Time) (User, error) {
	googleID := normalize(profile.GoogleID)
	email := normalize(profile.Email)
	if googleID == "" || email == "" {
		return User{}, ErrInvalidProfile
	}
	if token == "" {
		return User{}, fmt.Errorf("users: session token required")
	}

	now := s.now().UTC().Unix()
	var user User
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("lower(email) = lower(?)", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			userID, idErr := s.idProvider.NewID()
			if idErr != nil {
				return idErr
			}
			user = User{
				ID:        userID,
				GoogleID:  googleID,
				Email:     email,
				Name:      normalize(profile.Name),
				AvatarURL: normalize(profile.AvatarURL),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			user.Name = normalize(profile.Name)
			user.AvatarURL = normalize(profile.AvatarURL)
			user.UpdatedAt = now
			if err := tx.Model(&User{}).
				Where("id = ?", user.ID).
				Updates(map[string]interface{}{
					"name":       user.Name,
					"image":      user.AvatarURL,
					"updated_at": user.UpdatedAt,
				}).Error; err != nil {
				return err
			}
		}

		sessionID, idErr := s.idProvider.NewID()
		if idErr != nil {
			return idErr
		}
		session := Session{
			ID:        sessionID,
			UserID:    user.ID,
			Token:     token,
			ExpiresAt: expiresAt.UTC().Unix(),
		}
		return tx.Create(&session).Error
	})
	if txErr != nil {
		return User{}, txErr
	}

	return user, nil
}

// LookupByIdentity resolves the local user matching a verified subject and
// email pair. Both fields must match the same row.
func (s *Service) LookupByIdentity(ctx context.Context, googleID, email string) (User, error) {
	if normalize(googleID) == "" || normalize(email) == "" {
		return User{}, ErrUserNotFound
	}

	var user User
	err := s.db.WithContext(ctx).
		Where("google_id = ? AND lower(email) = lower(?)", googleID, email).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetByID returns the user with the provided identifier.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}
