// Package domain holds primitives validated at trust boundaries.
package domain

import (
	"strconv"
	"strings"

	dErrors "casevault/pkg/domain-errors"
)

// ResourceID identifies the record targeted for permanent deletion.
type ResourceID int64

// ActorID identifies the authenticated caller performing an action.
type ActorID int64

// ParseResourceID parses a positive decimal resource identifier.
func ParseResourceID(s string) (ResourceID, error) {
	v, err := parsePositive(s, "resource id")
	if err != nil {
		return 0, err
	}
	return ResourceID(v), nil
}

// ParseActorID parses a positive decimal actor identifier.
func ParseActorID(s string) (ActorID, error) {
	v, err := parsePositive(s, "actor id")
	if err != nil {
		return 0, err
	}
	return ActorID(v), nil
}

func parsePositive(s, name string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" is required")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+name)
	}
	if v <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be positive")
	}
	return v, nil
}

func (id ResourceID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id ResourceID) IsNil() bool { return id == 0 }

func (id ActorID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id ActorID) IsNil() bool { return id == 0 }

// Role is the privilege level asserted by the identity layer.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleInvestigator Role = "investigator"
	RoleViewer       Role = "viewer"
)

// ParseRole validates a role claim. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleInvestigator, RoleViewer:
		return r, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
}

// IsAdmin reports whether the role carries elevated privilege.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string { return string(r) }
