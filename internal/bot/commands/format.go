package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jensholdgaard/cpl-auction/internal/importer"
	"github.com/jensholdgaard/cpl-auction/internal/ledger"
)

// maxMessageLen is Discord's content limit for a single message.
const maxMessageLen = 2000

var titles = []struct {
	err    error
	title  string
	detail string
}{
	{ledger.ErrUnauthorized, "Admins only", "Only auction admins can do that."},
	{ledger.ErrTeamFull, "Team full", ""},
	{ledger.ErrDestinationFull, "Destination full", ""},
	{ledger.ErrInsufficientBudget, "Insufficient budget", ""},
	{ledger.ErrInvalidCoins, "Invalid coins", ""},
	{ledger.ErrTeamNotFound, "Team not found", ""},
	{ledger.ErrPlayerNotFound, "Player not found", ""},
	{ledger.ErrAlreadyAssigned, "Already sold", ""},
	{ledger.ErrNoAvailablePlayers, "No players left", ""},
	{ledger.ErrAmbiguous, "Which one?", ""},
	{ledger.ErrStateChanged, "Auction changed", "The auction was updated elsewhere and has been reloaded. Check the latest state and try again."},
	{importer.ErrMissingNameColumn, "Import failed", ""},
}

// Message renders an error as a reply. Known ledger outcomes get a title and
// the detail that follows the sentinel text.
func Message(err error) string {
	for _, t := range titles {
		if !errors.Is(err, t.err) {
			continue
		}
		if t.detail != "" {
			return fmt.Sprintf("**%s**: %s", t.title, t.detail)
		}
		detail := err.Error()
		if i := strings.Index(detail, t.err.Error()); i >= 0 {
			detail = strings.TrimPrefix(detail[i+len(t.err.Error()):], ": ")
		}
		if detail == "" {
			detail = t.err.Error()
		}
		return fmt.Sprintf("**%s**: %s", t.title, detail)
	}
	return "Something went wrong. Please try again."
}

// FormatTeams renders every team with its roster and budget. Teams and
// players sharing a name are tagged with the reference that tells them apart.
func FormatTeams(teams []ledger.Team) string {
	teamNames := make(map[string]int, len(teams))
	var rostered []ledger.Player
	for _, t := range teams {
		teamNames[nameKey(t.Name)]++
		for _, p := range t.Players {
			rostered = append(rostered, p.Player)
		}
	}
	shared := sharedNames(rostered)

	var b strings.Builder
	for i, t := range teams {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "**%s**", t.Name)
		if teamNames[nameKey(t.Name)] > 1 {
			fmt.Fprintf(&b, " `%s`", t.ID)
		}
		fmt.Fprintf(&b, " | %d/%d players | %d used | %d left\n",
			len(t.Players), ledger.TeamSizeLimit, ledger.BudgetUsed(t), ledger.BudgetLeft(t))
		for n, p := range t.Players {
			fmt.Fprintf(&b, "%d. %s", n+1, playerLabel(p.Player, shared))
			fmt.Fprintf(&b, ": %d\n", p.Coins)
		}
	}
	return b.String()
}

// FormatAvailable lists unsold players.
func FormatAvailable(players []ledger.Player) string {
	if len(players) == 0 {
		return "No players available."
	}
	shared := sharedNames(players)
	var b strings.Builder
	fmt.Fprintf(&b, "**Available players (%d):**\n", len(players))
	for i, p := range players {
		fmt.Fprintf(&b, "%d. %s\n", i+1, playerLabel(p, shared))
	}
	return b.String()
}

func playerLabel(p ledger.Player, shared map[string]bool) string {
	label := p.Name
	if p.Role != "" {
		label += fmt.Sprintf(" (%s)", p.Role)
	}
	if shared[nameKey(p.Name)] {
		label += fmt.Sprintf(" `%s`", p.Ref())
	}
	return label
}

// sharedNames reports the names held by more than one player.
func sharedNames(players []ledger.Player) map[string]bool {
	counts := make(map[string]int, len(players))
	for _, p := range players {
		counts[nameKey(p.Name)]++
	}
	shared := make(map[string]bool)
	for name, n := range counts {
		if n > 1 {
			shared[name] = true
		}
	}
	return shared
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FormatStats renders auction progress.
func FormatStats(s ledger.Stats) string {
	return fmt.Sprintf("**Total:** %d | **Assigned:** %d | **Remaining:** %d | **Completion:** %d%%",
		s.Total, s.Assigned, s.Remaining, s.CompletionPercent)
}

func truncate(msg string) string {
	if len(msg) <= maxMessageLen {
		return msg
	}
	const more = "\n…"
	cut := strings.LastIndex(msg[:maxMessageLen-len(more)], "\n")
	if cut < 0 {
		cut = maxMessageLen - len(more)
	}
	return msg[:cut] + more
}
