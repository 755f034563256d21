package breaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Breaker guards storage calls. Infrastructure failures count toward tripping
// the circuit; domain outcomes such as a missing row never do.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

func New(name string, cfg config.BreakerConfig, logg *logger.Logger) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isInfrastructureError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "circuit breaker state changed")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Do runs fn through the circuit. Typed errors and gorm.ErrRecordNotFound are
// returned untouched; every other failure, including an open circuit, becomes
// STORAGE_UNAVAILABLE.
func (b *Breaker) Do(op string, fn func() error) error {
	if b == nil || b.cb == nil {
		return mapError(op, fn())
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return mapError(op, err)
}

// State exposes the current circuit state for readiness reporting.
func (b *Breaker) State() string {
	if b == nil || b.cb == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, fmt.Sprintf("%s: storage circuit open", op))
	}
	if !isInfrastructureError(err) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, op)
}

func isInfrastructureError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code() == pkgerrors.CodeStorageUnavailable || typed.Code() == pkgerrors.CodeInternal
	}
	return true
}
