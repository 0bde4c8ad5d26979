package enroll

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"enrolld/internal/models"
)

const defaultLeaderboardLimit = 20

// CreateUser signs up a new member.
func (s *Service) CreateUser(ctx context.Context, name, email string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return models.User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return models.User{}, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrDuplicateEmail
		}

		user = models.User{Name: name, Email: email, Role: models.RoleMember}
		return tx.Create(&user).Error
	})
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user created")
	return user, nil
}

// GetUser loads a single user.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// Leaderboard returns the top users by score, highest first.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	var users []models.User
	err := s.db.WithContext(ctx).
		Order("score DESC, name ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
