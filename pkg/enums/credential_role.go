package enums

import "fmt"

// CredentialRole hints which credential set leads during a dual-running
// provider migration. It carries no weight in resolution.
type CredentialRole string

const (
	CredentialRolePrimary   CredentialRole = "primary"
	CredentialRoleSecondary CredentialRole = "secondary"
)

var validCredentialRoles = []CredentialRole{
	CredentialRolePrimary,
	CredentialRoleSecondary,
}

// String implements fmt.Stringer.
func (c CredentialRole) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CredentialRole) IsValid() bool {
	for _, candidate := range validCredentialRoles {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCredentialRole converts raw input into a CredentialRole.
func ParseCredentialRole(value string) (CredentialRole, error) {
	for _, candidate := range validCredentialRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credential role %q", value)
}
