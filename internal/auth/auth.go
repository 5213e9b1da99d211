// Package auth resolves who is calling a ledger operation and what they may do.
package auth

import "github.com/jensholdgaard/cpl-auction/internal/config"

// Role is the capability level of a caller.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Principal identifies the caller of a ledger operation.
type Principal struct {
	ID   string
	Name string
	Role Role
}

// IsAdmin reports whether the principal may mutate the auction.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Anonymous is a viewer with no identity.
var Anonymous = Principal{Name: "anonymous", Role: RoleViewer}

// Local returns the admin principal used by the local CLI. Whoever can open
// the store already holds the data, so the CLI acts as an admin.
func Local(name string) Principal {
	if name == "" {
		name = "local"
	}
	return Principal{ID: "local:" + name, Name: name, Role: RoleAdmin}
}

// Gate maps Discord members to principals using the configured admin lists.
type Gate struct {
	users map[string]struct{}
	roles map[string]struct{}
}

// NewGate builds a Gate from the auth configuration.
func NewGate(cfg config.AuthConfig) *Gate {
	g := &Gate{
		users: make(map[string]struct{}, len(cfg.AdminUserIDs)),
		roles: make(map[string]struct{}, len(cfg.AdminRoleIDs)),
	}
	for _, id := range cfg.AdminUserIDs {
		g.users[id] = struct{}{}
	}
	for _, id := range cfg.AdminRoleIDs {
		g.roles[id] = struct{}{}
	}
	return g
}

// Resolve returns the principal for a member with the given user ID, display
// name and guild role IDs. Members matching neither list are viewers.
func (g *Gate) Resolve(userID, name string, roleIDs []string) Principal {
	p := Principal{ID: userID, Name: name, Role: RoleViewer}
	if _, ok := g.users[userID]; ok {
		p.Role = RoleAdmin
		return p
	}
	for _, r := range roleIDs {
		if _, ok := g.roles[r]; ok {
			p.Role = RoleAdmin
			return p
		}
	}
	return p
}
