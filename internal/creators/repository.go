package creator

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// Repository stores creator profiles.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID returns gorm.ErrRecordNotFound for unknown creators.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	var creator models.Creator
	if err := r.db.WithContext(ctx).First(&creator, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &creator, nil
}

// FindActive pages through active creators ordered by name.
func (r *Repository) FindActive(ctx context.Context, page pagination.Page) ([]models.Creator, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.Creator{}).
		Where("status = ?", enums.CreatorStatusActive)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	rows := []models.Creator{}
	if total == 0 || int64(page.Offset()) >= total {
		return rows, total, nil
	}
	err := base.Session(&gorm.Session{}).
		Order("name ASC").
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).
		Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Create inserts a profile. Duplicate ids or emails surface as unique
// violations.
func (r *Repository) Create(ctx context.Context, creator *models.Creator) error {
	return r.db.WithContext(ctx).Create(creator).Error
}
