package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Creator is the public seller profile of a user. ID is the user's id, so
// products.creator_id points here.
type Creator struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name         string              `gorm:"column:name;not null"`
	Email        string              `gorm:"column:email;not null;uniqueIndex:ux_creators_email"`
	Description  string              `gorm:"column:description;not null;default:''"`
	ProfileImage *string             `gorm:"column:profile_image"`
	Website      *string             `gorm:"column:website"`
	Status       enums.CreatorStatus `gorm:"column:status;type:text;not null;default:'active';index:idx_creators_status"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// CanPublish reports whether the creator may list new products.
func (c *Creator) CanPublish() bool {
	return c.Status == enums.CreatorStatusActive
}
