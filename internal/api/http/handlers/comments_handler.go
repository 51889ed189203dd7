package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/craigfelt/zerobitone-ticket-service/internal/api/dto"
	"github.com/craigfelt/zerobitone-ticket-service/internal/service"
	apperrors "github.com/craigfelt/zerobitone-ticket-service/pkg/util/errorutil"
)

// CommentsHandler manages a ticket's comment thread.
type CommentsHandler struct {
	service *service.TicketService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(ticketService *service.TicketService) *CommentsHandler {
	return &CommentsHandler{service: ticketService}
}

// AddComment POST /api/tickets/:id/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticketID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	comment, err := h.service.AddComment(c.UserContext(), actor, ticketID, service.CommentInput{
		Content:    req.Content,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCommentResponse(comment))
}

// UpdateComment PUT /api/tickets/:id/comments/:commentId.
func (h *CommentsHandler) UpdateComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticketID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	commentID, err := idParam(c, "commentId")
	if err != nil {
		return err
	}
	var req dto.UpdateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	comment, err := h.service.UpdateComment(c.UserContext(), actor, ticketID, commentID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCommentResponse(comment))
}

// DeleteComment DELETE /api/tickets/:id/comments/:commentId.
func (h *CommentsHandler) DeleteComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticketID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	commentID, err := idParam(c, "commentId")
	if err != nil {
		return err
	}

	deleted, err := h.service.DeleteComment(c.UserContext(), actor, ticketID, commentID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NewNotFound("comment", map[string]any{"ticketId": ticketID, "commentId": commentID})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
