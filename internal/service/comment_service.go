package service

import (
	"context"
	"strings"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/events"
	apperrors "github.com/craigfelt/zerobitone-ticket-service/pkg/util/errorutil"
)

// CommentInput describes a new comment.
type CommentInput struct {
	Content    string
	IsInternal bool
}

// AddComment appends a comment to the ticket thread and bumps the ticket's updatedAt.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID int64, input CommentInput) (*domain.Comment, error) {
	if isBlank(input.Content) {
		return nil, apperrors.NewValidationError("comment content is required", map[string]any{"fields": []string{"content"}})
	}

	comment := &domain.Comment{
		TicketID:   ticketID,
		UserID:     actor.ID,
		Content:    input.Content,
		IsInternal: input.IsInternal,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, mapTicketError(err, ticketID)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticketID,
		ActorID:  actorID(actor),
		Payload: events.CommentPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.UserID,
			IsInternal:  comment.IsInternal,
			BodyPreview: stringPreview(comment.Content, 120),
		},
	})
	return comment, nil
}

// UpdateComment rewrites a comment's content. The comment must belong to ticketID.
func (s *TicketService) UpdateComment(ctx context.Context, actor domain.Actor, ticketID, commentID int64, content string) (*domain.Comment, error) {
	if isBlank(content) {
		return nil, apperrors.NewValidationError("comment content is required", map[string]any{"fields": []string{"content"}})
	}
	existing, err := s.findComment(ctx, ticketID, commentID)
	if err != nil {
		return nil, err
	}
	if s.authorizer != nil && !s.authorizer.CanEditComment(actor, existing) {
		return nil, apperrors.NewForbidden("only the author or an administrator may update this comment")
	}

	updated, err := s.comments.Update(ctx, ticketID, commentID, content, s.now().UTC())
	if err != nil {
		return nil, mapCommentError(err, ticketID, commentID)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentUpdated,
		TicketID: ticketID,
		ActorID:  actorID(actor),
		Payload: events.CommentPayload{
			CommentID:   updated.ID,
			AuthorID:    updated.UserID,
			BodyPreview: stringPreview(updated.Content, 120),
		},
	})
	return updated, nil
}

// DeleteComment removes a comment from the ticket thread. It reports false
// when the comment did not exist on that ticket.
func (s *TicketService) DeleteComment(ctx context.Context, actor domain.Actor, ticketID, commentID int64) (bool, error) {
	if s.authorizer != nil {
		existing, err := s.findComment(ctx, ticketID, commentID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		if !s.authorizer.CanDeleteComment(actor, existing) {
			return false, apperrors.NewForbidden("only the author or an administrator may delete this comment")
		}
	}

	deleted, err := s.comments.Delete(ctx, ticketID, commentID, s.now().UTC())
	if err != nil {
		return false, err
	}
	if deleted {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCommentDeleted,
			TicketID: ticketID,
			ActorID:  actorID(actor),
			Payload:  events.CommentPayload{CommentID: commentID},
		})
	}
	return deleted, nil
}

func (s *TicketService) findComment(ctx context.Context, ticketID, commentID int64) (*domain.Comment, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if comments[i].ID == commentID {
			return &comments[i], nil
		}
	}
	return nil, apperrors.NewNotFound("comment", map[string]any{"ticketId": ticketID, "commentId": commentID})
}

func mapCommentError(err error, ticketID, commentID int64) error {
	if err == nil {
		return nil
	}
	if apperrors.IsNotFound(mapTicketError(err, ticketID)) {
		return apperrors.NewNotFound("comment", map[string]any{"ticketId": ticketID, "commentId": commentID})
	}
	return err
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
