package model

import (
	"fmt"
	"strings"
)

type Role int

const (
	RoleUnknown Role = iota
	RoleInstructor
	RoleStudent
	// the shared board or projector view
	RolePublicDisplay
)

func ParseRole(roleStr string) (Role, error) {
	switch strings.ToLower(roleStr) {
	case "instructor":
		return RoleInstructor, nil
	case "student":
		return RoleStudent, nil
	case "public", "public_display":
		return RolePublicDisplay, nil
	default:
		return RoleUnknown, fmt.Errorf("Unknown role: %s", roleStr)
	}
}

func (self Role) String() string {
	switch self {
	case RoleInstructor:
		return "instructor"
	case RoleStudent:
		return "student"
	case RolePublicDisplay:
		return "public_display"
	default:
		return "unknown"
	}
}

// comparable
type Participant struct {
	Id        Id
	Role      Role
	HumanName string
}

func NewParticipant(role Role, humanName string) Participant {
	return Participant{
		Id:        NewId(),
		Role:      role,
		HumanName: humanName,
	}
}

func (self Participant) String() string {
	return fmt.Sprintf("%s(%s)", self.Role, self.Id)
}
