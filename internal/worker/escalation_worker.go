package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Wildnerds/korrectNG-sub003/internal/config"
	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/events"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
	"github.com/Wildnerds/korrectNG-sub003/internal/service"
)

// EscalationWorker periodically flags disputes whose 48-hour response
// window elapsed without an artisan response, and retries escrow pauses
// that failed at creation time.
type EscalationWorker struct {
	disputes   repository.DisputeRepository
	timeline   repository.TimelineRepository
	escrow     service.EscrowInterlock
	dispatcher events.Dispatcher
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(
	disputes repository.DisputeRepository,
	timeline repository.TimelineRepository,
	escrow service.EscrowInterlock,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	cfg config.WorkerConfig,
) *EscalationWorker {
	batch := cfg.ScanBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &EscalationWorker{
		disputes:   disputes,
		timeline:   timeline,
		escrow:     escrow,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   cfg.ScanInterval(),
		batchSize:  batch,
	}
}

// Run loops until the context is cancelled.
func (w *EscalationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("escalation worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("escalation worker stopped")
			return
		case <-ticker.C:
			if err := w.ScanOnce(ctx); err != nil {
				w.logger.Error("escalation scan failed", zap.Error(err))
			}
		}
	}
}

// ScanOnce performs a single escalation and pause-retry pass.
func (w *EscalationWorker) ScanOnce(ctx context.Context) error {
	now := time.Now()

	due, err := w.disputes.ListEscalationDue(ctx, now, w.batchSize)
	if err != nil {
		return err
	}
	for i := range due {
		w.escalate(ctx, &due[i], now)
	}

	pending, err := w.disputes.ListPausePending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	for i := range pending {
		w.retryPause(ctx, &pending[i])
	}
	return nil
}

func (w *EscalationWorker) escalate(ctx context.Context, dispute *domain.Dispute, now time.Time) {
	flagged, err := w.disputes.MarkEscalated(ctx, dispute.ID, now)
	if err != nil {
		w.logger.Error("failed to mark dispute escalated",
			zap.String("dispute_id", dispute.ID),
			zap.Error(err))
		return
	}
	if !flagged {
		// another instance already escalated this dispute
		return
	}

	entry := &domain.TimelineEntry{
		DisputeID: dispute.ID,
		Action:    domain.ActionWindowElapsed,
		ActorType: domain.ActorTypeSystem,
	}
	if err := w.timeline.Create(ctx, entry); err != nil {
		w.logger.Error("failed to record escalation timeline entry",
			zap.String("dispute_id", dispute.ID),
			zap.Error(err))
	}

	if w.dispatcher != nil {
		_ = w.dispatcher.Publish(ctx, events.Event{
			ID:         uuid.NewString(),
			Type:       events.EventDisputeEscalated,
			DisputeID:  dispute.ID,
			ContractID: dispute.ContractID,
			Actor:      events.Actor{Type: domain.ActorTypeSystem},
			Timestamp:  now,
			Payload: events.DisputeEscalatedPayload{
				ResponseDueAt: dispute.ResponseDueAt,
			},
		})
	}

	w.logger.Info("dispute escalated",
		zap.String("dispute_id", dispute.ID),
		zap.String("contract_id", dispute.ContractID),
		zap.Time("response_due_at", dispute.ResponseDueAt))
}

func (w *EscalationWorker) retryPause(ctx context.Context, dispute *domain.Dispute) {
	if err := w.escrow.PauseRelease(ctx, dispute.ContractID); err != nil {
		w.logger.Error("escrow pause retry failed",
			zap.String("dispute_id", dispute.ID),
			zap.String("contract_id", dispute.ContractID),
			zap.Error(err))
		return
	}
	if err := w.disputes.MarkEscrowPaused(ctx, dispute.ID, time.Now()); err != nil {
		w.logger.Error("failed to mark escrow paused",
			zap.String("dispute_id", dispute.ID),
			zap.Error(err))
	}
}
