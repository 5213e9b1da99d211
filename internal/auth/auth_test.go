package auth_test

import (
	"testing"

	"github.com/jensholdgaard/cpl-auction/internal/auth"
	"github.com/jensholdgaard/cpl-auction/internal/config"
)

func TestGate_Resolve(t *testing.T) {
	gate := auth.NewGate(config.AuthConfig{
		AdminUserIDs: []string{"100"},
		AdminRoleIDs: []string{"auctioneer"},
	})

	tests := []struct {
		name      string
		userID    string
		roles     []string
		wantAdmin bool
	}{
		{name: "listed user", userID: "100", wantAdmin: true},
		{name: "listed role", userID: "200", roles: []string{"member", "auctioneer"}, wantAdmin: true},
		{name: "unlisted member", userID: "300", roles: []string{"member"}, wantAdmin: false},
		{name: "no roles", userID: "400", wantAdmin: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := gate.Resolve(tt.userID, "someone", tt.roles)
			if p.IsAdmin() != tt.wantAdmin {
				t.Errorf("Resolve(%q).IsAdmin() = %v, want %v", tt.userID, p.IsAdmin(), tt.wantAdmin)
			}
			if p.ID != tt.userID {
				t.Errorf("ID = %q, want %q", p.ID, tt.userID)
			}
		})
	}
}

func TestLocal(t *testing.T) {
	p := auth.Local("")
	if !p.IsAdmin() {
		t.Error("Local principal must be an admin")
	}
	if p.Name != "local" {
		t.Errorf("Name = %q, want %q", p.Name, "local")
	}
	if auth.Anonymous.IsAdmin() {
		t.Error("Anonymous must not be an admin")
	}
}
