package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Ref returns a short reference that tells the player apart from namesakes:
// the Cricheroes id when set, otherwise the pool id.
func (p Player) Ref() string {
	if cid := strings.TrimSpace(p.CricheroesID); cid != "" {
		return cid
	}
	return p.ID
}

// FindTeam resolves a team by id or, case-insensitively, by name. A name
// shared by several teams yields ErrAmbiguous.
func (l *Ledger) FindTeam(ref string) (Team, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ref = strings.TrimSpace(ref)
	if i := l.state.teamIndex(ref); i >= 0 {
		return l.state.Clone().Teams[i], nil
	}
	var matches []int
	for i, t := range l.state.Teams {
		if strings.EqualFold(strings.TrimSpace(t.Name), ref) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return Team{}, fmt.Errorf("%w: %s", ErrTeamNotFound, ref)
	case 1:
		return l.state.Clone().Teams[matches[0]], nil
	}
	refs := make([]string, 0, len(matches))
	for _, i := range matches {
		refs = append(refs, fmt.Sprintf("%s [%s]", l.state.Teams[i].Name, l.state.Teams[i].ID))
	}
	return Team{}, fmt.Errorf("%w: %q matches %s", ErrAmbiguous, ref, strings.Join(refs, ", "))
}

// FindPlayer resolves a pool player by id, Cricheroes id or name.
func (l *Ledger) FindPlayer(ref string) (Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return resolvePlayer(l.state.PlayersPool, ref)
}

// FindAvailable resolves ref among the players not on any roster, so a name
// shared with a sold player still reaches the unsold one. A player who only
// matches on a roster yields ErrAlreadyAssigned.
func (l *Ledger) FindAvailable(ref string) (Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := resolvePlayer(l.state.Available(), ref)
	if !errors.Is(err, ErrPlayerNotFound) {
		return p, err
	}
	if sold := matchPlayers(l.state.PlayersPool, ref); len(sold) > 0 {
		return Player{}, fmt.Errorf("%w: %s", ErrAlreadyAssigned, sold[0].Name)
	}
	return Player{}, err
}

// FindRostered resolves ref among the players on a roster and returns the
// team holding the match.
func (l *Ledger) FindRostered(ref string) (Player, Team, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rostered []Player
	for _, t := range l.state.Teams {
		for _, tp := range t.Players {
			rostered = append(rostered, tp.Player)
		}
	}
	p, err := resolvePlayer(rostered, ref)
	if err != nil {
		if !errors.Is(err, ErrPlayerNotFound) {
			return Player{}, Team{}, err
		}
		if unsold := matchPlayers(l.state.PlayersPool, ref); len(unsold) > 0 {
			return Player{}, Team{}, fmt.Errorf("%w: %s is not on any team", ErrPlayerNotFound, unsold[0].Name)
		}
		return Player{}, Team{}, err
	}
	for i, t := range l.state.Teams {
		if rosterIndex(t, p.ID) >= 0 {
			return p, l.state.Clone().Teams[i], nil
		}
	}
	return Player{}, Team{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, ref)
}

// TeamOf returns the team whose roster holds the player.
func (l *Ledger) TeamOf(playerID string) (Team, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, t := range l.state.Teams {
		if rosterIndex(t, playerID) >= 0 {
			return l.state.Clone().Teams[i], true
		}
	}
	return Team{}, false
}

// matchPlayers returns the candidate with id ref, or else every candidate
// whose Cricheroes id or case-insensitive name equals ref.
func matchPlayers(candidates []Player, ref string) []Player {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	for _, p := range candidates {
		if p.ID == ref {
			return []Player{p}
		}
	}
	var matches []Player
	for _, p := range candidates {
		if strings.TrimSpace(p.CricheroesID) == ref || strings.EqualFold(strings.TrimSpace(p.Name), ref) {
			matches = append(matches, p)
		}
	}
	return matches
}

func resolvePlayer(candidates []Player, ref string) (Player, error) {
	matches := matchPlayers(candidates, ref)
	switch len(matches) {
	case 0:
		return Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, strings.TrimSpace(ref))
	case 1:
		return matches[0], nil
	}
	refs := make([]string, 0, len(matches))
	for _, p := range matches {
		refs = append(refs, fmt.Sprintf("%s [%s]", p.Name, p.Ref()))
	}
	return Player{}, fmt.Errorf("%w: %q matches %s", ErrAmbiguous, strings.TrimSpace(ref), strings.Join(refs, ", "))
}
