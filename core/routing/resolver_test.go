package routing

import (
	"errors"
	"testing"

	"complaintdesk/core/directory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func demoResolver(t *testing.T) (*Resolver, *directory.Directory) {
	t.Helper()
	d, err := directory.LoadDemo(directory.Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	return NewResolver(d), d
}

func person(t *testing.T, d *directory.Directory, id string) directory.Person {
	t.Helper()
	p, ok := d.Lookup(id)
	require.True(t, ok, id)
	return p
}

func TestInitialHandler(t *testing.T) {
	r, d := demoResolver(t)

	h, err := r.InitialHandler(person(t, d, "u1"))
	require.NoError(t, err)
	assert.Equal(t, "u3", h.ID)

	h, err = r.InitialHandler(person(t, d, "u2"))
	require.NoError(t, err)
	assert.Equal(t, "u4", h.ID)

	_, err = r.InitialHandler(directory.Person{ID: "x", Role: directory.RoleStudent, Class: "ME-Z"})
	assert.True(t, errors.Is(err, ErrNoHandlerFound))
}

func TestNextHandler(t *testing.T) {
	r, d := demoResolver(t)

	h, err := r.NextHandler(person(t, d, "u3"))
	require.NoError(t, err)
	assert.Equal(t, "u5", h.ID, "CS teacher escalates to CS head")

	h, err = r.NextHandler(person(t, d, "u4"))
	require.NoError(t, err)
	assert.Equal(t, "u6", h.ID, "EE teacher escalates to EE head")

	h, err = r.NextHandler(person(t, d, "u5"))
	require.NoError(t, err)
	assert.Equal(t, "u7", h.ID)

	_, err = r.NextHandler(person(t, d, "u7"))
	assert.True(t, errors.Is(err, ErrForwardNotAllowed))

	_, err = r.NextHandler(person(t, d, "u1"))
	assert.True(t, errors.Is(err, ErrForwardNotAllowed))

	_, err = r.NextHandler(directory.Person{ID: "t9", Role: directory.RoleTeacher, Class: "X", Department: "Physics"})
	assert.True(t, errors.Is(err, ErrNoHandlerFound))
}

func TestChain(t *testing.T) {
	r, d := demoResolver(t)

	chain, err := r.Chain(person(t, d, "u1"))
	require.NoError(t, err)
	ids := make([]string, 0, len(chain))
	for _, p := range chain {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"u3", "u5", "u7"}, ids)

	dir, err := directory.New([]directory.Person{
		{ID: "s", Name: "S", Email: "s@x.edu", Role: directory.RoleStudent, Class: "A"},
		{ID: "t", Name: "T", Email: "t@x.edu", Role: directory.RoleTeacher, Class: "A", Department: "Nowhere"},
		{ID: "p", Name: "P", Email: "p@x.edu", Role: directory.RolePrincipal},
	})
	require.NoError(t, err)
	s, _ := dir.Lookup("s")
	chain, err = NewResolver(dir).Chain(s)
	assert.True(t, errors.Is(err, ErrNoHandlerFound))
	require.Len(t, chain, 1)
	assert.Equal(t, "t", chain[0].ID)
}
