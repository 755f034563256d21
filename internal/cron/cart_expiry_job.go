package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
)

const (
	cartExpiryJobName    = "cart-expiry"
	defaultCartTTL       = 7 * 24 * time.Hour
	defaultCartBatchSize = 500
	maxCartExpiryBatches = 1000
)

type cartExpiryRepo interface {
	FindAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
	DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type CartExpiryJobParams struct {
	Logger     *logger.Logger
	Repository cartExpiryRepo
	Metrics    *metrics.CronJobMetrics
	TTL        time.Duration
	BatchSize  int
	// DryRun only reports how many carts would be purged.
	DryRun bool
}

type cartExpiryJob struct {
	logg    *logger.Logger
	repo    cartExpiryRepo
	metrics *metrics.CronJobMetrics
	ttl     time.Duration
	batch   int
	dryRun  bool
	now     func() time.Time
}

// NewCartExpiryJob purges carts nobody has touched for the TTL, items
// included.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCartBatchSize
	}
	return &cartExpiryJob{
		logg:    params.Logger,
		repo:    params.Repository,
		metrics: params.Metrics,
		ttl:     ttl,
		batch:   batch,
		dryRun:  params.DryRun,
		now:     time.Now,
	}, nil
}

func (j *cartExpiryJob) Name() string { return cartExpiryJobName }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "ttl": j.ttl.String()})

	if j.dryRun {
		rows, err := j.repo.FindAbandoned(ctx, cutoff, 0)
		if err != nil {
			return fmt.Errorf("find abandoned carts: %w", err)
		}
		j.logg.Info(j.logg.WithField(logCtx, "carts_expired", len(rows)), "cart expiry dry run")
		return nil
	}

	var total int64
	for range maxCartExpiryBatches {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := j.repo.DeleteExpired(ctx, cutoff, j.batch)
		if err != nil {
			j.metrics.AddPurged(j.Name(), total)
			return fmt.Errorf("delete expired carts: %w", err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}
	j.metrics.AddPurged(j.Name(), total)
	j.logg.Info(j.logg.WithField(logCtx, "carts_deleted", total), "cart expiry complete")
	return nil
}
