package auth

import "fmt"

// Role is the closed set of principal roles. Capability checks dispatch over
// this enum rather than free-form strings.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role string against the closed enum.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDoctor, RoleNurse, RolePatient, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether the role is a member of the closed enum.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}
