package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/calderapay/connector/internal/charges"
	"github.com/calderapay/connector/pkg/config"
	"github.com/calderapay/connector/pkg/logger"
	"github.com/calderapay/connector/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ExpungerParams groups dependencies for the expunger.
type ExpungerParams struct {
	Repo    charges.Repository
	DB      txRunner
	Metrics *metrics.CaptureMetrics
	Logger  *logger.Logger
	Config  config.ExpungeConfig
	Now     func() time.Time
}

// Expunger hard-deletes old charges that failed ledger parity checks. A charge
// is only eligible once it is old enough and its last parity check falls
// outside the grace window, so a charge the ledger is still catching up on is
// left alone.
type Expunger struct {
	repo    charges.Repository
	db      txRunner
	metrics *metrics.CaptureMetrics
	logg    *logger.Logger
	cfg     config.ExpungeConfig
	now     func() time.Time
}

// NewExpunger builds an expunger.
func NewExpunger(params ExpungerParams) (*Expunger, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Expunger{
		repo:    params.Repo,
		db:      params.DB,
		metrics: params.Metrics,
		logg:    params.Logger,
		cfg:     params.Config,
		now:     now,
	}, nil
}

// Sweep deletes up to the configured batch of eligible charges, one per
// transaction so a failure mid-batch keeps what was already expunged.
func (e *Expunger) Sweep(ctx context.Context) (int, error) {
	now := e.now()
	createdBefore := now.AddDate(0, 0, -e.cfg.MinimumAgeDays)
	parityCheckedBefore := now.AddDate(0, 0, -e.cfg.ExcludeRecentlyParityCheckedDays)

	expunged := 0
	for expunged < e.cfg.BatchSize {
		charge, err := e.repo.FindChargeToExpunge(ctx, createdBefore, parityCheckedBefore)
		if err != nil {
			return expunged, fmt.Errorf("find charge to expunge: %w", err)
		}
		if charge == nil {
			break
		}

		err = e.db.WithTx(ctx, func(tx *gorm.DB) error {
			return e.repo.WithTx(tx).DeleteChargeWithEvents(ctx, charge.ID)
		})
		if err != nil {
			return expunged, fmt.Errorf("expunge charge %s: %w", charge.ExternalID, err)
		}

		e.metrics.IncExpunged()
		e.logg.Info(e.logg.WithChargeID(ctx, charge.ExternalID), "expunged charge missing from ledger")
		expunged++
	}
	return expunged, nil
}
