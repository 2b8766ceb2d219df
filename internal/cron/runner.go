package cronrunner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bookbalance/backend/internal/db"
	"github.com/bookbalance/backend/internal/service"
)

type Runner struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	baseCtx context.Context
}

func New(logger zerolog.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// AddProcessJob schedules a full balancing run. A run already in flight
// within the lookback window makes the tick a no-op.
func (r *Runner) AddProcessJob(spec string, store *db.Store, processor service.ProcessingService) (cron.EntryID, error) {
	return r.Add(spec, func(ctx context.Context) {
		running, err := store.HasRunningRun(ctx, 2*time.Hour)
		if err != nil {
			r.logger.Error().Err(err).Msg("cron: run check failed")
			return
		}
		if running {
			r.logger.Info().Msg("cron: previous run still in flight, skipping")
			return
		}

		runID := uuid.NewString()
		if err := store.CreateRun(ctx, runID, service.StatusRunning); err != nil {
			r.logger.Error().Err(err).Msg("cron: failed to create run")
			return
		}
		summary, err := processor.ProcessBooks(ctx, false)
		status := service.StatusSuccess
		if err != nil {
			status = service.StatusFailed
			r.logger.Error().Err(err).Msg("cron: processing failed")
		}
		b, _ := json.Marshal(summary)
		if err := store.FinishRun(ctx, runID, status, b); err != nil {
			r.logger.Error().Err(err).Msg("cron: failed to finish run")
		}
	})
}

func (r *Runner) Start() {
	r.logger.Info().Msg("cron started")
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("cron stopped")
}
