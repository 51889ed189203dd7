// Package authz decides whether an actor may mutate a ticket, comment or
// watcher set. Rules are casbin policies over (role, relation, object, action),
// where relation is how the actor relates to the target row.
package authz

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
)

const modelText = `
[request_definition]
r = role, rel, obj, act

[policy_definition]
p = role, rel, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.role == p.role && (p.rel == "any" || r.rel == p.rel) && r.obj == p.obj && r.act == p.act
`

// Relations between an actor and a target row.
const (
	RelAny      = "any"
	RelCreator  = "creator"
	RelAssignee = "assignee"
	RelAuthor   = "author"
	RelSelf     = "self"
	RelNone     = "none"
)

// Objects and actions used in policies.
const (
	ObjTicket  = "ticket"
	ObjComment = "comment"
	ObjWatcher = "watcher"

	ActUpdate = "update"
	ActDelete = "delete"
	ActManage = "manage"
)

// DefaultPolicies are the built-in rules: admins may do anything, users may
// update tickets they created or are assigned to, edit their own comments and
// manage their own watch subscriptions.
func DefaultPolicies() [][]string {
	return [][]string{
		{domain.RoleAdmin, RelAny, ObjTicket, ActUpdate},
		{domain.RoleAdmin, RelAny, ObjTicket, ActDelete},
		{domain.RoleAdmin, RelAny, ObjComment, ActUpdate},
		{domain.RoleAdmin, RelAny, ObjComment, ActDelete},
		{domain.RoleAdmin, RelAny, ObjWatcher, ActManage},

		{domain.RoleUser, RelCreator, ObjTicket, ActUpdate},
		{domain.RoleUser, RelAssignee, ObjTicket, ActUpdate},
		{domain.RoleUser, RelAuthor, ObjComment, ActUpdate},
		{domain.RoleUser, RelAuthor, ObjComment, ActDelete},
		{domain.RoleUser, RelSelf, ObjWatcher, ActManage},
	}
}

// Enforcer wraps a casbin enforcer loaded with in-memory policies.
type Enforcer struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewEnforcer builds an enforcer with the given policies, or DefaultPolicies when none.
func NewEnforcer(logger *zap.Logger, policies ...[]string) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse authz model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if len(policies) == 0 {
		policies = DefaultPolicies()
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("add policies: %w", err)
	}

	return &Enforcer{enforcer: enforcer, logger: logger}, nil
}

// CanMutateTicket reports whether actor may update ticket.
func (e *Enforcer) CanMutateTicket(actor domain.Actor, ticket *domain.Ticket) bool {
	var rels []string
	if ticket.CreatedBy == actor.ID {
		rels = append(rels, RelCreator)
	}
	if ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID {
		rels = append(rels, RelAssignee)
	}
	return e.allowed(actor, rels, ObjTicket, ActUpdate)
}

// CanDeleteTicket reports whether actor may hard-delete tickets.
func (e *Enforcer) CanDeleteTicket(actor domain.Actor) bool {
	return e.allowed(actor, nil, ObjTicket, ActDelete)
}

// CanEditComment reports whether actor may update comment.
func (e *Enforcer) CanEditComment(actor domain.Actor, comment *domain.Comment) bool {
	return e.allowed(actor, authorRel(actor, comment), ObjComment, ActUpdate)
}

// CanDeleteComment reports whether actor may delete comment.
func (e *Enforcer) CanDeleteComment(actor domain.Actor, comment *domain.Comment) bool {
	return e.allowed(actor, authorRel(actor, comment), ObjComment, ActDelete)
}

// CanManageWatcher reports whether actor may add or remove userID as a watcher.
func (e *Enforcer) CanManageWatcher(actor domain.Actor, userID int64) bool {
	var rels []string
	if userID == actor.ID {
		rels = append(rels, RelSelf)
	}
	return e.allowed(actor, rels, ObjWatcher, ActManage)
}

func authorRel(actor domain.Actor, comment *domain.Comment) []string {
	if comment.UserID == actor.ID {
		return []string{RelAuthor}
	}
	return nil
}

func (e *Enforcer) allowed(actor domain.Actor, rels []string, obj, act string) bool {
	role := actor.Role
	if role == "" {
		role = domain.RoleUser
	}
	if len(rels) == 0 {
		rels = []string{RelNone}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, rel := range rels {
		ok, err := e.enforcer.Enforce(role, rel, obj, act)
		if err != nil {
			e.logger.Error("permission check failed",
				zap.Error(err),
				zap.Int64("actor_id", actor.ID),
				zap.String("object", obj),
				zap.String("action", act))
			return false
		}
		if ok {
			return true
		}
	}
	return false
}
