package cron

import (
	"context"
	"fmt"

	"github.com/calderapay/connector/internal/capture"
	"github.com/calderapay/connector/pkg/logger"
)

type captureSweeper interface {
	Sweep(ctx context.Context) (capture.SweepResult, error)
}

// CaptureSweepJobParams configure the capture sweep job.
type CaptureSweepJobParams struct {
	Logger      *logger.Logger
	Coordinator captureSweeper
}

// NewCaptureSweepJob wraps the capture coordinator as a scheduled job.
func NewCaptureSweepJob(params CaptureSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("capture coordinator required")
	}
	return &captureSweepJob{
		logg:        params.Logger,
		coordinator: params.Coordinator,
	}, nil
}

type captureSweepJob struct {
	logg        *logger.Logger
	coordinator captureSweeper
}

func (j *captureSweepJob) Name() string { return "capture-sweep" }

func (j *captureSweepJob) Run(ctx context.Context) error {
	result, err := j.coordinator.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("capture sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"considered": result.Considered,
		"captured":   result.Captured,
		"retried":    result.Retried,
		"escalated":  result.Escalated,
	})
	j.logg.Info(logCtx, "capture sweep complete")
	return nil
}
