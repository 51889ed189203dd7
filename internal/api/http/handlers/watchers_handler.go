package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/craigfelt/zerobitone-ticket-service/internal/api/dto"
	"github.com/craigfelt/zerobitone-ticket-service/internal/service"
)

// WatchersHandler manages ticket watch subscriptions.
type WatchersHandler struct {
	service *service.TicketService
}

// NewWatchersHandler constructs handler.
func NewWatchersHandler(ticketService *service.TicketService) *WatchersHandler {
	return &WatchersHandler{service: ticketService}
}

// AddWatcher POST /api/tickets/:id/watchers. Without a userId the caller watches.
func (h *WatchersHandler) AddWatcher(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticketID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.WatcherRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	userID := req.UserID
	if userID == 0 {
		userID = actor.ID
	}

	ticket, err := h.service.AddWatcher(c.UserContext(), actor, ticketID, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// RemoveWatcher DELETE /api/tickets/:id/watchers/:userId.
func (h *WatchersHandler) RemoveWatcher(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticketID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	userID, err := idParam(c, "userId")
	if err != nil {
		return err
	}

	ticket, err := h.service.RemoveWatcher(c.UserContext(), actor, ticketID, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}
