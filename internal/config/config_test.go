package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jensholdgaard/cpl-auction/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
discord:
  token: "test-token"
  guild_id: "123456"
database:
  driver: "sqlx"
  host: "db.example.com"
  port: 5433
  user: "auction"
  password: "secret"
  dbname: "cpl"
  sslmode: "require"
server:
  port: 9090
telemetry:
  service_name: "my-bot"
  otlp_endpoint: "localhost:4318"
auth:
  admin_user_ids: ["42", "43"]
  admin_role_ids: ["900"]
auction:
  state_key: "season-2"
  seed: 7
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Discord.Token != "test-token" {
					t.Errorf("got token %q, want %q", cfg.Discord.Token, "test-token")
				}
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if len(cfg.Auth.AdminUserIDs) != 2 || cfg.Auth.AdminRoleIDs[0] != "900" {
					t.Errorf("got auth %+v", cfg.Auth)
				}
				if cfg.Auction.StateKey != "season-2" || cfg.Auction.Seed != 7 {
					t.Errorf("got auction %+v", cfg.Auction)
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
discord:
  token: "tok"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "sqlite" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "sqlite")
				}
				if cfg.Database.Path != "auction.db" {
					t.Errorf("got path %q, want %q", cfg.Database.Path, "auction.db")
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 8080)
				}
				if cfg.Telemetry.ServiceName != "auctionbot" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "auctionbot")
				}
				if cfg.Auction.StateKey != config.DefaultStateKey {
					t.Errorf("got state key %q, want %q", cfg.Auction.StateKey, config.DefaultStateKey)
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "memory driver accepted",
			yaml: `
database:
  driver: "memory"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "memory" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "memory")
				}
			},
		},
		{
			name: "invalid driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "sqlite without path rejected",
			yaml: `
database:
  driver: "sqlite"
  path: ""
`,
			wantErr: true,
		},
		{
			name: "empty state key rejected",
			yaml: `
auction:
  state_key: ""
`,
			wantErr: true,
		},
		{
			name: "unknown log level rejected",
			yaml: `
telemetry:
  log_level: "chatty"
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(config.EnvDiscordToken, "from-env")
	t.Setenv(config.EnvDatabasePassword, "pw-from-env")

	path := writeConfig(t, `
discord:
  token: "from-file"
database:
  password: "file-pw"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discord.Token != "from-env" {
		t.Errorf("token = %q, want %q", cfg.Discord.Token, "from-env")
	}
	if cfg.Database.Password != "pw-from-env" {
		t.Errorf("password = %q, want %q", cfg.Database.Password, "pw-from-env")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
