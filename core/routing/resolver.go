// Package routing decides who owns a complaint: the first responder when it is
// filed, and the next person up the escalation chain when it is forwarded.
package routing

import (
	"errors"
	"fmt"

	"complaintdesk/core/directory"
)

var (
	ErrNoHandlerFound    = errors.New("routing: no handler found")
	ErrForwardNotAllowed = errors.New("routing: role cannot forward")
)

// People is the slice of the directory the resolver needs.
type People interface {
	TeacherForClass(class string) (directory.Person, bool)
	HeadForDepartment(dept string) (directory.Person, bool)
	Principal() (directory.Person, bool)
}

type Resolver struct {
	people People
}

func NewResolver(people People) *Resolver {
	return &Resolver{people: people}
}

// InitialHandler returns the teacher of the creator's class.
func (r *Resolver) InitialHandler(creator directory.Person) (directory.Person, error) {
	if creator.Class == "" {
		return directory.Person{}, fmt.Errorf("%w: %s has no class", ErrNoHandlerFound, creator.ID)
	}
	t, ok := r.people.TeacherForClass(creator.Class)
	if !ok {
		return directory.Person{}, fmt.Errorf("%w: no teacher for class %s", ErrNoHandlerFound, creator.Class)
	}
	return t, nil
}

// NextHandler returns who receives a complaint forwarded by actor.
func (r *Resolver) NextHandler(actor directory.Person) (directory.Person, error) {
	switch actor.Role {
	case directory.RoleTeacher:
		if actor.Department == "" {
			return directory.Person{}, fmt.Errorf("%w: teacher %s has no department", ErrNoHandlerFound, actor.ID)
		}
		h, ok := r.people.HeadForDepartment(actor.Department)
		if !ok {
			return directory.Person{}, fmt.Errorf("%w: no head for department %s", ErrNoHandlerFound, actor.Department)
		}
		return h, nil
	case directory.RoleDepartmentHead:
		p, ok := r.people.Principal()
		if !ok {
			return directory.Person{}, fmt.Errorf("%w: no principal", ErrNoHandlerFound)
		}
		return p, nil
	default:
		return directory.Person{}, fmt.Errorf("%w: %s", ErrForwardNotAllowed, actor.Role)
	}
}

// Chain walks the escalation path for a complaint filed by creator. It stops
// at the first gap, returning the handlers found so far with the error.
func (r *Resolver) Chain(creator directory.Person) ([]directory.Person, error) {
	first, err := r.InitialHandler(creator)
	if err != nil {
		return nil, err
	}
	chain := []directory.Person{first}
	cur := first
	for cur.Role != directory.RolePrincipal {
		next, err := r.NextHandler(cur)
		if err != nil {
			return chain, err
		}
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}
