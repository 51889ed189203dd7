package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	apperrors "github.com/craigfelt/zerobitone-ticket-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	token, expiresAt, err := tm.GenerateToken(domain.Actor{ID: 42, Role: domain.RoleAdmin, Permissions: []string{"tickets:delete"}})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: 42, Role: domain.RoleAdmin, Permissions: []string{"tickets:delete"}}, claims.Actor())
	assert.Equal(t, "42", claims.Subject)
}

func TestParseToken_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	token, _, err := tm.GenerateToken(domain.Actor{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenManager("other", 10).ParseToken(token)
	assert.Error(t, err, "wrong secret")

	expired := NewTokenManager("secret", 1)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateToken(domain.Actor{ID: 1})
	require.NoError(t, err)
	_, err = tm.ParseToken(old)
	assert.Error(t, err, "expired")

	_, _, err = tm.GenerateToken(domain.Actor{})
	assert.Error(t, err)
}

func TestClaims_DefaultRole(t *testing.T) {
	c := Claims{UserID: 3}
	assert.Equal(t, domain.RoleUser, c.Actor().Role)
}

func newApp(tm *TokenManager, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm)
	chain := append([]fiber.Handler{mw.Handle}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.JSON(actor)
	})
	app.Get("/", chain...)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	app := newApp(tm)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, _, err := tm.GenerateToken(domain.Actor{ID: 7, Role: domain.RoleUser})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	app := newApp(tm, RequireAdmin())

	user, _, err := tm.GenerateToken(domain.Actor{ID: 7, Role: domain.RoleUser})
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	admin, _, err := tm.GenerateToken(domain.Actor{ID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
