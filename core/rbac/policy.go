// Package rbac maps directory roles to route permissions. It guards which
// endpoints a role may call; ownership of a particular complaint is still
// checked by the complaints service.
package rbac

import (
	"fmt"
	"sort"
	"sync"

	"complaintdesk/core/directory"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermComplaintsCreate  Permission = "complaints.create"
	PermComplaintsRead    Permission = "complaints.read"
	PermComplaintsAct     Permission = "complaints.act"
	PermComplaintsForward Permission = "complaints.forward"
	PermPeopleRead        Permission = "people.read"
	PermAuditRead         Permission = "audit.read"
)

type Role struct {
	Name        string
	Permissions []Permission
}

const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj
`

type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	roles    map[string][]Permission
}

// DefaultRoles is the permission table for the four directory roles.
func DefaultRoles() []Role {
	all := []Permission{PermComplaintsRead, PermPeopleRead}
	return []Role{
		{Name: string(directory.RoleStudent), Permissions: append([]Permission{PermComplaintsCreate}, all...)},
		{Name: string(directory.RoleTeacher), Permissions: append([]Permission{PermComplaintsAct, PermComplaintsForward}, all...)},
		{Name: string(directory.RoleDepartmentHead), Permissions: append([]Permission{PermComplaintsAct, PermComplaintsForward}, all...)},
		{Name: string(directory.RolePrincipal), Permissions: append([]Permission{PermComplaintsAct, PermComplaintsForward, PermAuditRead}, all...)},
	}
}

func NewPolicy(roles []Role) (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	p := &Policy{enforcer: e, roles: map[string][]Permission{}}
	for _, r := range roles {
		for _, perm := range r.Permissions {
			if _, err := e.AddPolicy(r.Name, string(perm)); err != nil {
				return nil, fmt.Errorf("rbac policy %s/%s: %w", r.Name, perm, err)
			}
		}
		p.roles[r.Name] = append(p.roles[r.Name], r.Permissions...)
	}
	return p, nil
}

// MustDefaultPolicy panics when the built-in table fails to load.
func MustDefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRoles())
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Policy) Allowed(role string, perm Permission) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	ok, err := p.enforcer.Enforce(role, string(perm))
	return err == nil && ok
}

// Permissions lists what role may do, sorted.
func (p *Policy) Permissions(role string) []Permission {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := append([]Permission(nil), p.roles[role]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
