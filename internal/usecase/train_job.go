package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

// TrainJob runs queued TrainSymbol requests.
type TrainJob struct {
	forecaster *Forecaster
	log        *logger.Logger
}

func NewTrainJob(f *Forecaster, log *logger.Logger) *TrainJob {
	if log == nil {
		log = logger.Nop()
	}
	return &TrainJob{forecaster: f, log: log}
}

func (j *TrainJob) Name() string { return "train_symbol" }

func (j *TrainJob) Type() string { return TrainJobType }

func (j *TrainJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[models.TrainJobPayload](payload)
	if err != nil {
		return err
	}
	res, err := j.forecaster.TrainSymbol(ctx, SymbolParams{
		Symbol: p.Symbol,
		N:      p.N,
		TF:     domrepo.NormalizeTimeframe(p.TF),
	})
	if errors.Is(err, ErrTrainingInProgress) {
		j.log.Info("training skipped, already running", logger.String("symbol", p.Symbol))
		return nil
	}
	if err != nil {
		return err
	}
	j.log.Info("training job done",
		logger.String("symbol", p.Symbol),
		logger.Int("series_length", res.SeriesLength),
		logger.Strings("failed", res.FailedModels))
	return nil
}

var _ queue.Job = (*TrainJob)(nil)
