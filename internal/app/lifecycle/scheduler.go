package lifecycle

import (
	"context"
	"fmt"

	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/auditlog"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
)

// Batch names.
const (
	BatchStart   = "start"
	BatchArchive = "archive"
)

// BatchReport summarizes one batch run.
type BatchReport struct {
	Batch     string `json:"batch"`
	Selected  int    `json:"selected"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Scheduler selects due promos and drives each one through the
// Orchestrator. Items are processed one at a time; a failed item is
// logged and the batch moves on.
type Scheduler struct {
	rc     resource.Client
	orch   *Orchestrator
	notify *Notifier
	audit  *auditlog.Logger
	log    *zap.Logger
}

// NewScheduler creates a Scheduler. notify may be nil.
func NewScheduler(rc resource.Client, orch *Orchestrator, notify *Notifier, audit *auditlog.Logger, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{rc: rc, orch: orch, notify: notify, audit: audit, log: logger}
}

// RunStartBatch starts every pending promo whose start date has come.
func (s *Scheduler) RunStartBatch(ctx context.Context) (BatchReport, error) {
	return s.run(ctx, BatchStart, s.rc.ListPromosDueToStart, func(ctx context.Context, p models.Promo) error {
		rep, err := s.orch.StartPromo(ctx, p)
		if err != nil {
			return err
		}
		s.notify.Started(ctx, p, rep)
		return nil
	})
}

// RunArchiveBatch archives every active promo whose end date has passed.
func (s *Scheduler) RunArchiveBatch(ctx context.Context) (BatchReport, error) {
	return s.run(ctx, BatchArchive, s.rc.ListPromosDueToArchive, func(ctx context.Context, p models.Promo) error {
		rep, err := s.orch.ArchivePromo(ctx, p)
		if err != nil {
			return err
		}
		s.notify.Archived(ctx, p, rep)
		return nil
	})
}

func (s *Scheduler) run(
	ctx context.Context,
	batch string,
	list func(context.Context) ([]models.Promo, error),
	apply func(context.Context, models.Promo) error,
) (BatchReport, error) {
	rep := BatchReport{Batch: batch}
	log := s.log.With(zap.String("batch", batch))

	promos, err := list(ctx)
	if err != nil {
		log.Error("list due promos failed", zap.Error(err))
		return rep, fmt.Errorf("%s batch: list due promos: %w", batch, err)
	}
	rep.Selected = len(promos)
	if len(promos) == 0 {
		log.Debug("no promo due")
		return rep, nil
	}

	for _, p := range promos {
		if err := ctx.Err(); err != nil {
			log.Warn("batch interrupted", zap.Error(err), zap.Int("remaining", rep.Selected-rep.Succeeded-rep.Failed))
			rep.Failed += rep.Selected - rep.Succeeded - rep.Failed
			break
		}
		if err := apply(ctx, p); err != nil {
			rep.Failed++
			log.Error("promo transition failed",
				zap.String("promo_id", p.ID),
				zap.String("promo", p.Name),
				zap.Error(err))
			continue
		}
		rep.Succeeded++
	}

	s.audit.BatchCompleted(ctx, batch, rep.Selected, rep.Succeeded, rep.Failed)
	log.Info("batch completed",
		zap.Int("selected", rep.Selected),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed))
	return rep, nil
}
