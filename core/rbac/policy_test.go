package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyTable(t *testing.T) {
	p, err := NewPolicy(DefaultRoles())
	require.NoError(t, err)

	cases := []struct {
		role string
		perm Permission
		want bool
	}{
		{"student", PermComplaintsCreate, true},
		{"student", PermComplaintsRead, true},
		{"student", PermComplaintsAct, false},
		{"teacher", PermComplaintsCreate, false},
		{"teacher", PermComplaintsAct, true},
		{"teacher", PermComplaintsForward, true},
		{"department-head", PermComplaintsForward, true},
		{"principal", PermComplaintsAct, true},
		{"principal", PermComplaintsForward, true},
		{"principal", PermAuditRead, true},
		{"janitor", PermComplaintsRead, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, p.Allowed(tc.role, tc.perm), "%s %s", tc.role, tc.perm)
	}
	assert.Equal(t, []Permission{PermComplaintsCreate, PermComplaintsRead, PermPeopleRead}, p.Permissions("student"))
}

func TestNilPolicyDeniesEverything(t *testing.T) {
	var p *Policy
	assert.False(t, p.Allowed("principal", PermComplaintsAct))
	assert.Nil(t, p.Permissions("principal"))
}
