package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"enrolld/internal/models"
)

// Seed inserts baseline lookup data such as default event categories.
func Seed(ctx context.Context, database *gorm.DB) error {
	defaultCategories := []models.EventCategory{
		{Name: "Social", Color: "#2563eb", Icon: "users"},
		{Name: "Sports", Color: "#16a34a", Icon: "trophy"},
		{Name: "Workshop", Color: "#9333ea", Icon: "wrench"},
		{Name: "Volunteering", Color: "#ea580c", Icon: "heart"},
	}
	for _, category := range defaultCategories {
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&category).Error; err != nil {
			return err
		}
	}
	return nil
}
