// Package creator manages the seller profiles products are published under.
package creator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/breaker"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

type Service interface {
	Register(ctx context.Context, userID uuid.UUID, input RegisterInput) (*CreatorDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CreatorDTO, error)
	ListActive(ctx context.Context, page, pageSize *int) (*ListResult, error)
}

// RegisterInput is the profile a user submits to become a creator.
type RegisterInput struct {
	Name         string
	Email        string
	Description  string
	ProfileImage *string
	Website      *string
}

type ServiceParams struct {
	Repo    *Repository
	Breaker *breaker.Breaker
	Metrics *metrics.CatalogMetrics
	Config  config.CatalogConfig
	Logger  *logger.Logger
}

type service struct {
	repo    *Repository
	breaker *breaker.Breaker
	metrics *metrics.CatalogMetrics
	cfg     config.CatalogConfig
	logg    *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("creator repository required")
	}
	cfg := p.Config
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = pagination.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = pagination.MaxPageSize
	}
	return &service{
		repo:    p.Repo,
		breaker: p.Breaker,
		metrics: p.Metrics,
		cfg:     cfg,
		logg:    p.Logger,
	}, nil
}

// Register creates the caller's creator profile. A user registers once; the
// profile starts active.
func (s *service) Register(ctx context.Context, userID uuid.UUID, input RegisterInput) (dto *CreatorDTO, err error) {
	defer s.observe("creator_register", time.Now(), &err)

	if err := validateRegisterInput(userID, input); err != nil {
		return nil, err
	}
	record := &models.Creator{
		ID:           userID,
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Description:  strings.TrimSpace(input.Description),
		ProfileImage: input.ProfileImage,
		Website:      input.Website,
		Status:       enums.CreatorStatusActive,
	}

	if _, err := s.find(ctx, userID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "creator already registered")
	} else if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	if err := s.breaker.Do("creator.create", func() error {
		return conflictFromCreate(s.repo.Create(ctx, record))
	}); err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "creator_id", userID.String()), "creator registered")
	}
	out := NewCreatorDTO(record)
	return &out, nil
}

// Get returns a profile regardless of status.
func (s *service) Get(ctx context.Context, id uuid.UUID) (dto *CreatorDTO, err error) {
	defer s.observe("creator_get", time.Now(), &err)

	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	out := NewCreatorDTO(record)
	return &out, nil
}

func (s *service) ListActive(ctx context.Context, page, pageSize *int) (result *ListResult, err error) {
	defer s.observe("creator_list", time.Now(), &err)

	if page != nil && *page < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page must be at least 1").
			WithDetails(map[string]any{"field": "page"})
	}
	if pageSize != nil && (*pageSize < 1 || *pageSize > s.cfg.MaxPageSize) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("pageSize must be between 1 and %d", s.cfg.MaxPageSize)).
			WithDetails(map[string]any{"field": "pageSize"})
	}
	resolved := pagination.Resolve(page, pageSize, s.cfg.DefaultPageSize)

	var (
		rows  []models.Creator
		total int64
	)
	if err := s.breaker.Do("creator.list", func() error {
		var qerr error
		rows, total, qerr = s.repo.FindActive(ctx, resolved)
		return qerr
	}); err != nil {
		return nil, err
	}

	items := make([]CreatorDTO, 0, len(rows))
	for i := range rows {
		items = append(items, NewCreatorDTO(&rows[i]))
	}
	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       resolved.Number,
		PageSize:   resolved.Size,
		TotalPages: pagination.TotalPages(total, resolved.Size),
	}, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	var record *models.Creator
	err := s.breaker.Do("creator.find", func() error {
		var ferr error
		record, ferr = s.repo.FindByID(ctx, id)
		return ferr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "creator not found")
		}
		return nil, err
	}
	return record, nil
}

// conflictFromCreate maps unique violations to CONFLICT so the breaker does
// not count them as storage failures.
func conflictFromCreate(err error) error {
	if !db.IsUniqueViolation(err, "") {
		return err
	}
	if strings.Contains(err.Error(), "email") {
		return pkgerrors.New(pkgerrors.CodeConflict, "email already in use").
			WithDetails(map[string]any{"field": "email"})
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "creator already registered")
}

func (s *service) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(*errp); typed != nil {
			outcome = string(typed.Code())
		}
	}
	s.metrics.Observe(op, outcome, time.Since(start))
}

func validateRegisterInput(userID uuid.UUID, input RegisterInput) error {
	invalid := func(field, msg string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
	}
	if userID == uuid.Nil {
		return invalid("id", "user is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return invalid("name", "name is required")
	}
	email := strings.TrimSpace(input.Email)
	if at := strings.IndexByte(email, '@'); at < 1 || at == len(email)-1 {
		return invalid("email", "email is invalid")
	}
	return nil
}
