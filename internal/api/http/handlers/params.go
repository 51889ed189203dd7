package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/craigfelt/zerobitone-ticket-service/internal/api/dto"
	"github.com/craigfelt/zerobitone-ticket-service/internal/auth"
	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	apperrors "github.com/craigfelt/zerobitone-ticket-service/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func idParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid path parameter", map[string]any{"fields": []string{name}})
	}
	return id, nil
}

// parseBody decodes the JSON body into req and runs struct validation.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}
