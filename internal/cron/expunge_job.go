package cron

import (
	"context"
	"fmt"

	"github.com/calderapay/connector/pkg/logger"
)

type chargeExpunger interface {
	Sweep(ctx context.Context) (int, error)
}

// ExpungeJobParams configure the expunge job.
type ExpungeJobParams struct {
	Logger   *logger.Logger
	Expunger chargeExpunger
}

// NewExpungeJob wraps the charge expunger as a scheduled job.
func NewExpungeJob(params ExpungeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expunger == nil {
		return nil, fmt.Errorf("expunger required")
	}
	return &expungeJob{
		logg:     params.Logger,
		expunger: params.Expunger,
	}, nil
}

type expungeJob struct {
	logg     *logger.Logger
	expunger chargeExpunger
}

func (j *expungeJob) Name() string { return "charge-expunge" }

func (j *expungeJob) Run(ctx context.Context) error {
	expunged, err := j.expunger.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("charge expunge: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_expunged", expunged)
	j.logg.Info(logCtx, "charge expunge complete")
	return nil
}
