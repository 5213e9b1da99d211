package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jensholdgaard/cpl-auction/internal/importer"
	"github.com/jensholdgaard/cpl-auction/internal/ledger"
)

var errNotConfirmed = errors.New("refusing to continue without --yes")

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import players from a CSV export",
		Long: `Import players from a CSV file. Headers expected:
  Player Name, Role, Mobile Number, Image URL, Cricheroes Id
Only Player Name is required. Players already in the pool are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			defer f.Close()

			players, err := importer.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			res, err := a.ledger.ImportPlayers(cmd.Context(), a.principal(), players)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Players imported: %d processed, %d new.\n", res.Processed, res.Added)
			return nil
		},
	}
}

func addCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add a single player by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.ledger.AddPlayer(cmd.Context(), a.principal(), args[0])
			if err != nil {
				return err
			}
			if res.Added == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already in the pool.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s.\n", args[0])
			return nil
		},
	}
}

func drawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "draw",
		Short: "Pick a random available player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.ledger.Draw(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Name, p.Role)
			return nil
		},
	}
}

func assignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <player> <team> <coins>",
		Short: "Sell a player to a team",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.ledger.FindAvailable(args[0])
			if err != nil {
				return err
			}
			t, err := a.ledger.FindTeam(args[1])
			if err != nil {
				return err
			}
			coins, err := parseCoins(args[2])
			if err != nil {
				return err
			}
			if err := a.ledger.AssignPlayer(cmd.Context(), a.principal(), p, t.ID, coins); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s → %s for %d coins\n", p.Name, t.Name, coins)
			return nil
		},
	}
}

func removeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <player>",
		Short: "Release a player from their team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := a.ledger.FindRostered(args[0])
			if err != nil {
				return err
			}
			if err := a.ledger.RemovePlayer(cmd.Context(), a.principal(), t.ID, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s from %s.\n", p.Name, t.Name)
			return nil
		},
	}
}

func editCoinsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit-coins <player> <coins>",
		Short: "Change the price paid for a player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := a.ledger.FindRostered(args[0])
			if err != nil {
				return err
			}
			coins, err := parseCoins(args[1])
			if err != nil {
				return err
			}
			if err := a.ledger.EditPlayerCoins(cmd.Context(), a.principal(), t.ID, p.ID, coins); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now costs %d coins on %s.\n", p.Name, coins, t.Name)
			return nil
		},
	}
}

func moveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <player> <team>",
		Short: "Move a player to another team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, from, err := a.ledger.FindRostered(args[0])
			if err != nil {
				return err
			}
			to, err := a.ledger.FindTeam(args[1])
			if err != nil {
				return err
			}
			if err := a.ledger.MovePlayer(cmd.Context(), a.principal(), from.ID, to.ID, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s → %s\n", p.Name, to.Name)
			return nil
		},
	}
}

func renameTeamCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-team <team> <name>",
		Short: "Rename a team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.ledger.FindTeam(args[0])
			if err != nil {
				return err
			}
			if err := a.ledger.RenameTeam(cmd.Context(), a.principal(), t.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", t.Name, a.teamName(t.ID))
			return nil
		},
	}
}

func resetTeamCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-team <team>",
		Short: "Release every player on a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.ledger.FindTeam(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("%w: this releases %d players from %s", errNotConfirmed, len(t.Players), t.Name)
			}
			if err := a.ledger.ResetTeam(cmd.Context(), a.principal(), t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s has been reset.\n", t.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

func resetAllCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-all",
		Short: "Clear the player pool and all teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("%w: this clears the pool and every team", errNotConfirmed)
			}
			if err := a.ledger.ResetAll(cmd.Context(), a.principal()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Auction reset.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

func teamsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "Show team rosters and budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range a.ledger.Snapshot().Teams {
				fmt.Fprintf(w, "%s\t%s\t%d/%d players\t%d used\t%d left\n",
					t.Name, t.ID, len(t.Players), ledger.TeamSizeLimit, ledger.BudgetUsed(t), ledger.BudgetLeft(t))
				for _, p := range t.Players {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t\n", p.Name, p.Ref(), p.Role, p.Coins)
				}
			}
			return w.Flush()
		},
	}
}

func availableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List players not yet sold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, p := range a.ledger.Available() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Role, p.CricheroesID)
			}
			return w.Flush()
		},
	}
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show auction progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.ledger.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "total=%d assigned=%d remaining=%d completion=%d%%\n",
				s.Total, s.Assigned, s.Remaining, s.CompletionPercent)
			return nil
		},
	}
}

func stateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the stored auction document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.ledger.Snapshot())
		},
	}
}

func historyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the audit log of committed changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := a.events.Load(cmd.Context(), a.key)
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range events {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					e.Version, e.CreatedAt.Local().Format(time.DateTime), e.Type, e.Actor, e.Data)
			}
			return w.Flush()
		},
	}
}

func (a *app) teamName(id string) string {
	if t, err := a.ledger.FindTeam(id); err == nil {
		return t.Name
	}
	return id
}

func parseCoins(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ledger.ErrInvalidCoins, s)
	}
	return n, nil
}
