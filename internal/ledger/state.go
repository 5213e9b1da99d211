package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Auction limits. They are fixed for the lifetime of an auction.
const (
	TeamBudget    = 6000
	TeamSizeLimit = 16
	TeamCount     = 4
)

// Player is an entry in the auction pool.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	CricheroesID string `json:"cricheroesId,omitempty"`
}

// DedupKey is the identity used to decide whether an imported record is new:
// the lowercased, trimmed name and the trimmed Cricheroes id.
func (p Player) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(p.Name)) + "|" + strings.TrimSpace(p.CricheroesID)
}

// TeamPlayer is a player on a team roster together with the price paid.
type TeamPlayer struct {
	Player
	Coins int `json:"coins"`
}

// UnmarshalJSON decodes a roster entry. A coins value that is not a number
// (or a numeric string) decodes as 0 rather than failing the whole document.
func (tp *TeamPlayer) UnmarshalJSON(data []byte) error {
	var raw struct {
		Player
		Coins json.RawMessage `json:"coins"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tp.Player = raw.Player
	tp.Coins = lenientCoins(raw.Coins)
	return nil
}

func lenientCoins(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finiteInt(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return finiteInt(f)
		}
	}
	return 0
}

func finiteInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// Team is one of the auction's fixed teams.
type Team struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Players []TeamPlayer `json:"players"`
}

// State is the aggregate root persisted as a single document.
type State struct {
	PlayersPool []Player `json:"playersPool"`
	Teams       []Team   `json:"teams"`
	// Version counts committed transitions.
	Version int `json:"version,omitempty"`
}

// Stats summarises auction progress.
type Stats struct {
	Total             int `json:"total"`
	Assigned          int `json:"assigned"`
	Remaining         int `json:"remaining"`
	CompletionPercent int `json:"completionPercent"`
}

// BudgetUsed returns the coins spent by a team.
func BudgetUsed(t Team) int {
	used := 0
	for _, p := range t.Players {
		used += p.Coins
	}
	return used
}

// BudgetLeft returns the coins a team may still spend.
func BudgetLeft(t Team) int {
	return TeamBudget - BudgetUsed(t)
}

// TeamName returns the default name of the team at position i ("Team A" for 0).
func TeamName(i int) string {
	return fmt.Sprintf("Team %c", rune('A'+i))
}

// DefaultState returns an empty pool and TeamCount fresh teams.
func DefaultState(newID func() string) State {
	s := State{PlayersPool: []Player{}, Teams: make([]Team, 0, TeamCount)}
	for i := 0; i < TeamCount; i++ {
		s.Teams = append(s.Teams, Team{ID: newID(), Name: TeamName(i), Players: []TeamPlayer{}})
	}
	return s
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		PlayersPool: append(make([]Player, 0, len(s.PlayersPool)), s.PlayersPool...),
		Teams:       make([]Team, len(s.Teams)),
		Version:     s.Version,
	}
	for i, t := range s.Teams {
		out.Teams[i] = Team{
			ID:      t.ID,
			Name:    t.Name,
			Players: append(make([]TeamPlayer, 0, len(t.Players)), t.Players...),
		}
	}
	return out
}

// Available returns the pool players that are not on any roster, in pool order.
func (s State) Available() []Player {
	assigned := s.assignedIDs()
	out := make([]Player, 0, len(s.PlayersPool))
	for _, p := range s.PlayersPool {
		if _, ok := assigned[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Stats returns pool size, assigned and remaining counts and completion.
func (s State) Stats() Stats {
	assigned := 0
	for _, t := range s.Teams {
		assigned += len(t.Players)
	}
	total := len(s.PlayersPool)
	st := Stats{Total: total, Assigned: assigned, Remaining: total - assigned}
	if total > 0 {
		st.CompletionPercent = int(math.Round(100 * float64(assigned) / float64(total)))
	}
	return st
}

func (s State) assignedIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, t := range s.Teams {
		for _, p := range t.Players {
			ids[p.ID] = struct{}{}
		}
	}
	return ids
}

func (s State) teamIndex(teamID string) int {
	for i, t := range s.Teams {
		if t.ID == teamID {
			return i
		}
	}
	return -1
}

func (s State) poolIndex(playerID string) int {
	for i, p := range s.PlayersPool {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

func rosterIndex(t Team, playerID string) int {
	for i, p := range t.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// repair normalises a decoded document: nil slices become empty and the team
// list is truncated or padded to TeamCount. It reports whether anything changed.
func (s *State) repair(newID func() string) bool {
	changed := false
	if s.PlayersPool == nil {
		s.PlayersPool = []Player{}
	}
	if len(s.Teams) > TeamCount {
		s.Teams = s.Teams[:TeamCount]
		changed = true
	}
	for i := len(s.Teams); i < TeamCount; i++ {
		s.Teams = append(s.Teams, Team{ID: newID(), Name: TeamName(i), Players: []TeamPlayer{}})
		changed = true
	}
	for i := range s.Teams {
		if s.Teams[i].Players == nil {
			s.Teams[i].Players = []TeamPlayer{}
		}
	}
	return changed
}
