package directory

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent        Role = "student"
	RoleTeacher        Role = "teacher"
	RoleDepartmentHead Role = "department-head"
	RolePrincipal      Role = "principal"
)

var knownRoles = []Role{RoleStudent, RoleTeacher, RoleDepartmentHead, RolePrincipal}

// ParseRole accepts the canonical names plus the "hod" shorthand.
func ParseRole(raw string) (Role, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "hod", "head", "department_head":
		return RoleDepartmentHead, nil
	}
	for _, r := range knownRoles {
		if string(r) == v {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

func (r Role) String() string { return string(r) }

// Person is immutable once the directory has been loaded.
type Person struct {
	ID         string `json:"id" yaml:"id" validate:"required"`
	Name       string `json:"name" yaml:"name" validate:"required"`
	Email      string `json:"email" yaml:"email" validate:"required,email"`
	Role       Role   `json:"role" yaml:"role" validate:"required,oneof=student teacher department-head principal"`
	Class      string `json:"class,omitempty" yaml:"class,omitempty"`
	Department string `json:"department,omitempty" yaml:"department,omitempty"`

	credentialHash []byte
}

func (p Person) IsZero() bool { return p.ID == "" }

// HasCredential reports whether a password hash was loaded for the person.
func (p Person) HasCredential() bool { return len(p.credentialHash) > 0 }

// CredentialHash returns a copy of the bcrypt hash.
func (p Person) CredentialHash() []byte {
	if len(p.credentialHash) == 0 {
		return nil
	}
	out := make([]byte, len(p.credentialHash))
	copy(out, p.credentialHash)
	return out
}
