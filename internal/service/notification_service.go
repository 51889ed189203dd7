package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/events"
)

// NotificationService relays domain events to the configured sinks. Sink
// failures are logged and never reach the request that produced the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	sinks      []events.Sink

	sendTimeout time.Duration
}

// defaultSendTimeout bounds a single sink write.
const defaultSendTimeout = 3 * time.Second

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, sinks ...events.Sink) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		sinks:      sinks,

		sendTimeout: defaultSendTimeout,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	events.SubscribeAll(n.dispatcher, n.relay)
}

func (n *NotificationService) relay(ctx context.Context, event events.Event) error {
	n.logger.Debug("ticket event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID))

	for _, sink := range n.sinks {
		if err := n.send(ctx, sink, event); err != nil {
			n.logger.Warn("event delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event_type", string(event.Type)),
				zap.Int64("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
	return nil
}

func (n *NotificationService) send(ctx context.Context, sink events.Sink, event events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()
	return sink.Send(ctx, event)
}

// Close releases sink resources.
func (n *NotificationService) Close() {
	for _, sink := range n.sinks {
		if err := sink.Close(); err != nil {
			n.logger.Warn("closing event sink", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}
