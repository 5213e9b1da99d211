package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cpl-auction/internal/auth"
	"github.com/jensholdgaard/cpl-auction/internal/event"
)

// Operation names used in spans, metrics and log records.
const (
	opImport     = "import_players"
	opAssign     = "assign_player"
	opRemove     = "remove_player"
	opEditCoins  = "edit_player_coins"
	opMove       = "move_player"
	opRenameTeam = "rename_team"
	opResetTeam  = "reset_team"
	opResetAll   = "reset_all"
)

// ImportResult reports the outcome of an import.
type ImportResult struct {
	// Processed is the number of candidates submitted.
	Processed int
	// Added is the number of candidates that were new to the pool.
	Added int
}

// ImportPlayers merges candidates into the pool. A candidate whose dedup key
// is already known is dropped; the existing entry wins. Candidates without an
// id, or with an id already in use, are given a fresh one.
func (l *Ledger) ImportPlayers(ctx context.Context, who auth.Principal, candidates []Player) (ImportResult, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.ImportPlayers",
		trace.WithAttributes(attribute.Int("candidates", len(candidates))),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	res := ImportResult{Processed: len(candidates)}
	if err := l.authorize(ctx, opImport, who); err != nil {
		return res, err
	}

	next := l.state.Clone()
	seen := make(map[string]struct{}, len(next.PlayersPool)+len(candidates))
	ids := make(map[string]struct{}, len(next.PlayersPool)+len(candidates))
	for _, p := range next.PlayersPool {
		seen[p.DedupKey()] = struct{}{}
		ids[p.ID] = struct{}{}
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		key := c.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		if _, taken := ids[c.ID]; c.ID == "" || taken {
			c.ID = l.newID()
		}
		seen[key] = struct{}{}
		ids[c.ID] = struct{}{}
		next.PlayersPool = append(next.PlayersPool, c)
		res.Added++
	}
	span.SetAttributes(attribute.Int("added", res.Added))

	payload := event.PlayersImportedData{Processed: res.Processed, Added: res.Added}
	if res.Added == 0 {
		l.record(ctx, who, event.PlayersImported, payload)
	} else if err := l.commit(ctx, opImport, who, next, event.PlayersImported, payload); err != nil {
		return ImportResult{Processed: res.Processed}, err
	}

	l.logger.InfoContext(ctx, "players imported",
		slog.Int("processed", res.Processed),
		slog.Int("added", res.Added),
	)
	return res, nil
}

// AddPlayer adds a single player by name.
func (l *Ledger) AddPlayer(ctx context.Context, who auth.Principal, name string) (ImportResult, error) {
	return l.ImportPlayers(ctx, who, []Player{{Name: strings.TrimSpace(name)}})
}

// AssignPlayer puts a pool player on a team's roster for the given price.
// Checks run in order: team exists, roster has room, budget covers coins,
// coins are positive, then the player is in the pool and still unsold.
func (l *Ledger) AssignPlayer(ctx context.Context, who auth.Principal, p Player, teamID string, coins int) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.AssignPlayer",
		trace.WithAttributes(
			attribute.String("player_id", p.ID),
			attribute.String("team_id", teamID),
			attribute.Int("coins", coins),
		),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(ctx, opAssign, who); err != nil {
		return err
	}
	ti := l.state.teamIndex(teamID)
	if ti < 0 {
		return l.reject(ctx, opAssign, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID))
	}
	team := l.state.Teams[ti]
	if len(team.Players) >= TeamSizeLimit {
		return l.reject(ctx, opAssign, fmt.Errorf("%w: max %d players for %s", ErrTeamFull, TeamSizeLimit, team.Name))
	}
	if left := BudgetLeft(team); coins > left {
		return l.reject(ctx, opAssign, fmt.Errorf("%w: %s has only %d coins left", ErrInsufficientBudget, team.Name, left))
	}
	if coins <= 0 {
		return l.reject(ctx, opAssign, fmt.Errorf("%w: got %d", ErrInvalidCoins, coins))
	}

	pi := l.state.poolIndex(p.ID)
	if pi < 0 {
		return l.reject(ctx, opAssign, fmt.Errorf("%w: %s", ErrPlayerNotFound, p.ID))
	}
	if _, taken := l.state.assignedIDs()[p.ID]; taken {
		return l.reject(ctx, opAssign, fmt.Errorf("%w: %s", ErrAlreadyAssigned, l.state.PlayersPool[pi].Name))
	}
	player := l.state.PlayersPool[pi]

	next := l.state.Clone()
	next.Teams[ti].Players = append(next.Teams[ti].Players, TeamPlayer{Player: player, Coins: coins})

	payload := event.PlayerAssignedData{PlayerID: player.ID, PlayerName: player.Name, TeamID: team.ID, Coins: coins}
	if err := l.commit(ctx, opAssign, who, next, event.PlayerAssigned, payload); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "player assigned",
		slog.String("player_id", player.ID),
		slog.String("player", player.Name),
		slog.String("team_id", team.ID),
		slog.Int("coins", coins),
	)
	return nil
}

// RemovePlayer takes a player off a team's roster. Removing a player that is
// not on the roster, or from an unknown team, changes nothing.
func (l *Ledger) RemovePlayer(ctx context.Context, who auth.Principal, teamID, playerID string) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.RemovePlayer",
		trace.WithAttributes(
			attribute.String("player_id", playerID),
			attribute.String("team_id", teamID),
		),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(ctx, opRemove, who); err != nil {
		return err
	}

	ti := l.state.teamIndex(teamID)
	if ti < 0 {
		return nil
	}
	ri := rosterIndex(l.state.Teams[ti], playerID)
	if ri < 0 {
		return nil
	}

	next := l.state.Clone()
	roster := next.Teams[ti].Players
	next.Teams[ti].Players = append(roster[:ri:ri], roster[ri+1:]...)

	payload := event.PlayerRemovedData{PlayerID: playerID, TeamID: teamID}
	if err := l.commit(ctx, opRemove, who, next, event.PlayerRemoved, payload); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "player removed",
		slog.String("player_id", playerID),
		slog.String("team_id", teamID),
	)
	return nil
}

// EditPlayerCoins changes the price of a rostered player. The edit is refused
// if the team's total would exceed TeamBudget.
func (l *Ledger) EditPlayerCoins(ctx context.Context, who auth.Principal, teamID, playerID string, coins int) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.EditPlayerCoins",
		trace.WithAttributes(
			attribute.String("player_id", playerID),
			attribute.String("team_id", teamID),
			attribute.Int("coins", coins),
		),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(ctx, opEditCoins, who); err != nil {
		return err
	}

	ti := l.state.teamIndex(teamID)
	if ti < 0 {
		return l.reject(ctx, opEditCoins, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID))
	}
	team := l.state.Teams[ti]
	ri := rosterIndex(team, playerID)
	if ri < 0 {
		return l.reject(ctx, opEditCoins, fmt.Errorf("%w: %s is not on %s", ErrPlayerNotFound, playerID, team.Name))
	}
	if coins <= 0 {
		return l.reject(ctx, opEditCoins, fmt.Errorf("%w: got %d", ErrInvalidCoins, coins))
	}

	prev := team.Players[ri].Coins
	if prev == coins {
		return nil
	}
	others := BudgetUsed(team) - prev
	if others+coins > TeamBudget {
		return l.reject(ctx, opEditCoins, fmt.Errorf("%w: %s has only %d coins left", ErrInsufficientBudget, team.Name, TeamBudget-others))
	}

	next := l.state.Clone()
	next.Teams[ti].Players[ri].Coins = coins

	payload := event.PlayerCoinsEditedData{PlayerID: playerID, TeamID: teamID, From: prev, To: coins}
	if err := l.commit(ctx, opEditCoins, who, next, event.PlayerCoinsEdited, payload); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "player coins edited",
		slog.String("player_id", playerID),
		slog.String("team_id", teamID),
		slog.Int("from", prev),
		slog.Int("to", coins),
	)
	return nil
}

// MovePlayer transfers a rostered player to another team, keeping the price.
// Moving within the same team changes nothing.
func (l *Ledger) MovePlayer(ctx context.Context, who auth.Principal, fromID, toID, playerID string) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.MovePlayer",
		trace.WithAttributes(
			attribute.String("player_id", playerID),
			attribute.String("from_team_id", fromID),
			attribute.String("to_team_id", toID),
		),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(ctx, opMove, who); err != nil {
		return err
	}
	if fromID == toID {
		return nil
	}

	fi, ti := l.state.teamIndex(fromID), l.state.teamIndex(toID)
	if fi < 0 {
		return l.reject(ctx, opMove, fmt.Errorf("%w: %s", ErrTeamNotFound, fromID))
	}
	if ti < 0 {
		return l.reject(ctx, opMove, fmt.Errorf("%w: %s", ErrTeamNotFound, toID))
	}
	from, to := l.state.Teams[fi], l.state.Teams[ti]
	ri := rosterIndex(from, playerID)
	if ri < 0 {
		return l.reject(ctx, opMove, fmt.Errorf("%w: %s is not on %s", ErrPlayerNotFound, playerID, from.Name))
	}
	if len(to.Players) >= TeamSizeLimit {
		return l.reject(ctx, opMove, fmt.Errorf("%w: max %d players for %s", ErrDestinationFull, TeamSizeLimit, to.Name))
	}
	moving := from.Players[ri]
	if left := BudgetLeft(to); moving.Coins > left {
		return l.reject(ctx, opMove, fmt.Errorf("%w: %s has only %d coins left", ErrInsufficientBudget, to.Name, left))
	}

	next := l.state.Clone()
	src := next.Teams[fi].Players
	next.Teams[fi].Players = append(src[:ri:ri], src[ri+1:]...)
	next.Teams[ti].Players = append(next.Teams[ti].Players, moving)

	payload := event.PlayerMovedData{PlayerID: playerID, FromTeamID: fromID, ToTeamID: toID, Coins: moving.Coins}
	if err := l.commit(ctx, opMove, who, next, event.PlayerMoved, payload); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "player moved",
		slog.String("player_id", playerID),
		slog.String("from_team_id", fromID),
		slog.String("to_team_id", toID),
		slog.Int("coins", moving.Coins),
	)
	return nil
}

// RenameTeam sets a team's display name. A blank name leaves it unchanged.
func (l *Ledger) RenameTeam(ctx context.Context, who auth.Principal, teamID, name string) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.RenameTeam",
		trace.WithAttributes(attribute.String("team_id", teamID)),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(ctx, opRenameTeam, who); err != nil {
		return err
	}

	ti := l.state.teamIndex(teamID)
	if ti < 0 {
		return l.reject(ctx, opRenameTeam, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID))
	}
	name = strings.TrimSpace(name)
	prev := l.state.Teams[ti].Name
	if name == "" || name == prev {
		return nil
	}

	next := l.state.Clone()
	next.Teams[ti].Name = name

	payload := event.TeamRenamedData{TeamID: teamID, From: prev, To: name}
	if err := l.commit(ctx, opRenameTeam, who, next, event.TeamRenamed, payload); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "team renamed",
		slog.String("team_id", teamID),
		slog.String("from", prev),
		slog.String("to", name),
	)
	return nil
}

// ResetTeam empties a team's roster. Its players become available again.
// Callers are expected to have obtained confirmation.
func (l *Ledger) ResetTeam(ctx context.Context, who auth.Principal, teamID string) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.ResetTeam",
		trace.WithAttributes(attribute.String("team_id", teamID)),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(ctx, opResetTeam, who); err != nil {
		return err
	}

	ti := l.state.teamIndex(teamID)
	if ti < 0 {
		return l.reject(ctx, opResetTeam, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID))
	}
	released := len(l.state.Teams[ti].Players)
	if released == 0 {
		return nil
	}

	next := l.state.Clone()
	next.Teams[ti].Players = []TeamPlayer{}

	payload := event.TeamResetData{TeamID: teamID, Released: released}
	if err := l.commit(ctx, opResetTeam, who, next, event.TeamReset, payload); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "team reset",
		slog.String("team_id", teamID),
		slog.Int("released", released),
	)
	return nil
}

// ResetAll clears the pool and replaces every team with a fresh, empty one.
// Callers are expected to have obtained confirmation.
func (l *Ledger) ResetAll(ctx context.Context, who auth.Principal) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.ResetAll")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(ctx, opResetAll, who); err != nil {
		return err
	}

	cleared := len(l.state.PlayersPool)
	next := DefaultState(l.newID)

	payload := event.AuctionResetData{ClearedPlayers: cleared}
	if err := l.commit(ctx, opResetAll, who, next, event.AuctionReset, payload); err != nil {
		return err
	}

	l.logger.WarnContext(ctx, "auction reset", slog.Int("cleared_players", cleared))
	return nil
}
