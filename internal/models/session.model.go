package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleHousekeeper Role = "housekeeper"
)

const ADMIN_IDENTITY = "admin"

var HousekeeperSlots = []string{"housekeeper-1", "housekeeper-2", "housekeeper-3", "housekeeper-4"}

var ErrUnknownIdentity = errors.New("unknown identity")

// Session is a signed-in tablet. Admin is a capability on the identity, not a credential.
type Session struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewSession(identity string, now time.Time) (Session, error) {
	var role Role
	switch {
	case identity == ADMIN_IDENTITY:
		role = RoleAdmin
	case slices.Contains(HousekeeperSlots, identity):
		role = RoleHousekeeper
	default:
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownIdentity, identity)
	}

	return Session{
		Token:     uuid.NewString(),
		Identity:  identity,
		Role:      role,
		CreatedAt: now,
	}, nil
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) Actor() Actor {
	if s.IsAdmin() {
		return Actor{Name: s.Identity, Type: SenderAdmin}
	}
	return Actor{Name: s.Identity, Type: SenderHousekeeper}
}
