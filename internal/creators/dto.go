package creator

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// CreatorDTO is the public profile. Email is never exposed.
type CreatorDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ProfileImage *string   `json:"profileImage,omitempty"`
	Website      *string   `json:"website,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewCreatorDTO(c *models.Creator) CreatorDTO {
	return CreatorDTO{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		ProfileImage: c.ProfileImage,
		Website:      c.Website,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
	}
}

type ListResult struct {
	Items      []CreatorDTO `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}
