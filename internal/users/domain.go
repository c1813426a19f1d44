// Package users manages user accounts and their per-user permission
// overrides. The override is a denormalized slice of the user record,
// not a separate collection.
package users

import (
	"time"

	"github.com/pelorus-marine/pelorus/internal/access"
)

// User represents a back-office user account.
type User struct {
	ID         int64
	Email      string
	Name       string
	IsActive   bool
	RoleID     *int64
	RoleName   string
	Additional access.PermissionSet
	Excluded   access.PermissionSet
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Override assembles the user's permission delta for the engine.
func (u User) Override() access.Override {
	roleID := int64(0)
	if u.RoleID != nil {
		roleID = *u.RoleID
	}
	return access.Override{
		UserID:     u.ID,
		RoleID:     roleID,
		Additional: u.Additional,
		Excluded:   u.Excluded,
	}
}
