package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
)

func newEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestCanMutateTicket(t *testing.T) {
	e := newEnforcer(t)
	assignee := int64(5)
	ticket := &domain.Ticket{CreatedBy: 1, AssignedTo: &assignee}

	tests := []struct {
		name  string
		actor domain.Actor
		want  bool
	}{
		{"creator", domain.Actor{ID: 1, Role: domain.RoleUser}, true},
		{"assignee", domain.Actor{ID: 5, Role: domain.RoleUser}, true},
		{"stranger", domain.Actor{ID: 9, Role: domain.RoleUser}, false},
		{"admin", domain.Actor{ID: 9, Role: domain.RoleAdmin}, true},
		{"empty role is user", domain.Actor{ID: 1}, true},
		{"unknown role", domain.Actor{ID: 1, Role: "guest"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.CanMutateTicket(tt.actor, ticket))
		})
	}
}

func TestCanDeleteTicket_AdminOnly(t *testing.T) {
	e := newEnforcer(t)
	assert.True(t, e.CanDeleteTicket(domain.Actor{ID: 1, Role: domain.RoleAdmin}))
	assert.False(t, e.CanDeleteTicket(domain.Actor{ID: 1, Role: domain.RoleUser}))
}

func TestComments_AuthorOrAdmin(t *testing.T) {
	e := newEnforcer(t)
	comment := &domain.Comment{UserID: 3}

	assert.True(t, e.CanEditComment(domain.Actor{ID: 3, Role: domain.RoleUser}, comment))
	assert.True(t, e.CanDeleteComment(domain.Actor{ID: 3, Role: domain.RoleUser}, comment))
	assert.False(t, e.CanEditComment(domain.Actor{ID: 4, Role: domain.RoleUser}, comment))
	assert.False(t, e.CanDeleteComment(domain.Actor{ID: 4, Role: domain.RoleUser}, comment))
	assert.True(t, e.CanDeleteComment(domain.Actor{ID: 4, Role: domain.RoleAdmin}, comment))
}

func TestCanManageWatcher_SelfOrAdmin(t *testing.T) {
	e := newEnforcer(t)
	assert.True(t, e.CanManageWatcher(domain.Actor{ID: 2, Role: domain.RoleUser}, 2))
	assert.False(t, e.CanManageWatcher(domain.Actor{ID: 2, Role: domain.RoleUser}, 3))
	assert.True(t, e.CanManageWatcher(domain.Actor{ID: 2, Role: domain.RoleAdmin}, 3))
}

func TestCustomPolicies(t *testing.T) {
	e, err := NewEnforcer(zap.NewNop(), []string{"agent", RelAny, ObjTicket, ActUpdate})
	require.NoError(t, err)

	assert.True(t, e.CanMutateTicket(domain.Actor{ID: 8, Role: "agent"}, &domain.Ticket{CreatedBy: 1}))
	assert.False(t, e.CanDeleteTicket(domain.Actor{ID: 8, Role: domain.RoleAdmin}), "defaults are replaced")
}
