package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/events"
)

// FlagBreaches marks every non-terminal ticket whose resolution deadline has
// passed. Each ticket is flagged by its own conditional write, so a ticket
// resolved between the scan and the write is left alone. It returns the
// number of tickets flagged in this pass. Breach events are published after
// the pass so slow delivery cannot use up its deadline.
func (s *TicketService) FlagBreaches(ctx context.Context) (int, error) {
	now := s.now().UTC()
	terminal := s.catalog.TerminalStatusIDs()

	ids, err := s.tickets.OverdueIDs(ctx, now, terminal)
	if err != nil {
		return 0, fmt.Errorf("scan overdue tickets: %w", err)
	}

	var flagged []int64
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		entry := &domain.TicketHistory{
			TicketID:   id,
			ChangeType: domain.ChangeTypeSLABreached,
			OldValue:   map[string]any{"breached": false},
			NewValue:   map[string]any{"breached": true},
			CreatedAt:  now,
		}
		ok, err := s.tickets.MarkBreached(ctx, id, now, terminal, entry)
		if err != nil {
			s.logger.Error("flag sla breach", zap.Int64("ticket_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("ticket %d: %w", id, err))
			continue
		}
		if !ok {
			continue
		}
		flagged = append(flagged, id)
	}

	publishCtx := context.WithoutCancel(ctx)
	for i, id := range flagged {
		if ctx.Err() != nil {
			s.logger.Warn("sla breach events dropped", zap.Int("count", len(flagged)-i), zap.Error(ctx.Err()))
			break
		}
		s.publishBreach(publishCtx, id)
	}
	return len(flagged), errors.Join(errs...)
}

func (s *TicketService) publishBreach(ctx context.Context, ticketID int64) {
	event := events.Event{Type: events.EventTicketSLABreached, TicketID: ticketID}
	lookupCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if ticket, err := s.tickets.GetByID(lookupCtx, ticketID); err == nil {
		event.TicketNumber = ticket.Number
		event.Payload = events.SLABreachedPayload{ResolutionDeadline: ticket.SLA.ResolutionDeadline}
	}
	s.publishEvent(ctx, event)
}
