package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Wildnerds/korrectNG-sub003/internal/config"
	"github.com/Wildnerds/korrectNG-sub003/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDisputeOpened, n.handleDisputeOpened)
	n.dispatcher.Subscribe(events.EventEvidenceAdded, n.handleEvidenceAdded)
	n.dispatcher.Subscribe(events.EventDisputeResponded, n.handleDisputeResponded)
	n.dispatcher.Subscribe(events.EventDisputeResolved, n.handleDisputeResolved)
	n.dispatcher.Subscribe(events.EventDisputeClosed, n.handleDisputeClosed)
	n.dispatcher.Subscribe(events.EventDisputeEscalated, n.handleDisputeEscalated)
}

func (n *NotificationService) handleDisputeOpened(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeOpened", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEvidenceAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("EvidenceAdded", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDisputeResponded(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeResponded", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDisputeResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeResolved", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDisputeClosed(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeClosed", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDisputeEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeEscalated", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("dispute_id", event.DisputeID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("dispute_id", event.DisputeID),
		zap.String("event_type", string(event.Type)))
}
