package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	PlayersImported   Type = "players.imported"
	PlayerAssigned    Type = "player.assigned"
	PlayerRemoved     Type = "player.removed"
	PlayerCoinsEdited Type = "player.coins_edited"
	PlayerMoved       Type = "player.moved"

	TeamRenamed Type = "team.renamed"
	TeamReset   Type = "team.reset"

	AuctionReset Type = "auction.reset"
)

// Event represents a single committed ledger transition.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	Actor       string          `json:"actor" db:"actor"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PlayersImportedData is the payload for PlayersImported events.
// Processed is the number of candidates submitted, Added the number that
// were new to the pool.
type PlayersImportedData struct {
	Processed int `json:"processed"`
	Added     int `json:"added"`
}

// PlayerAssignedData is the payload for PlayerAssigned events.
type PlayerAssignedData struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	TeamID     string `json:"team_id"`
	Coins      int    `json:"coins"`
}

// PlayerRemovedData is the payload for PlayerRemoved events.
type PlayerRemovedData struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
}

// PlayerCoinsEditedData is the payload for PlayerCoinsEdited events.
type PlayerCoinsEditedData struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

// PlayerMovedData is the payload for PlayerMoved events.
type PlayerMovedData struct {
	PlayerID   string `json:"player_id"`
	FromTeamID string `json:"from_team_id"`
	ToTeamID   string `json:"to_team_id"`
	Coins      int    `json:"coins"`
}

// TeamRenamedData is the payload for TeamRenamed events.
type TeamRenamedData struct {
	TeamID string `json:"team_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// TeamResetData is the payload for TeamReset events.
type TeamResetData struct {
	TeamID   string `json:"team_id"`
	Released int    `json:"released"`
}

// AuctionResetData is the payload for AuctionReset events.
type AuctionResetData struct {
	ClearedPlayers int `json:"cleared_players"`
}
