package commands

import "slices"

// Caller is the chat identity that issued a command.
type Caller struct {
	ID          string
	Roles       []string
	ManageGuild bool
}

// IsAdminFunc decides whether a caller may run admin commands.
type IsAdminFunc func(Caller) bool

// RoleAdmin grants admin when the caller holds roleID. With no role configured it falls back
// to the explicit adminIDs list, then to the manage-server permission.
func RoleAdmin(roleID string, adminIDs []string) IsAdminFunc {
	return func(c Caller) bool {
		if c.ID == "" {
			return false
		}
		if roleID != "" {
			return slices.Contains(c.Roles, roleID)
		}
		if len(adminIDs) > 0 {
			return slices.Contains(adminIDs, c.ID)
		}
		return c.ManageGuild
	}
}
