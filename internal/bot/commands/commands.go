package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cpl-auction/internal/auth"
	"github.com/jensholdgaard/cpl-auction/internal/importer"
	"github.com/jensholdgaard/cpl-auction/internal/ledger"
)

// maxAttachmentBytes bounds CSV uploads.
const maxAttachmentBytes = 1 << 20

// FetchFunc downloads an attachment body.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Handlers process Discord interactions.
type Handlers struct {
	ledger *ledger.Ledger
	gate   *auth.Gate
	fetch  FetchFunc
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandlers creates new command handlers. A nil fetch downloads
// attachments over HTTP.
func NewHandlers(l *ledger.Ledger, gate *auth.Gate, fetch FetchFunc, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	if fetch == nil {
		fetch = httpFetch(&http.Client{Timeout: 15 * time.Second})
	}
	return &Handlers{
		ledger: l,
		gate:   gate,
		fetch:  fetch,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/cpl-auction/internal/bot/commands"),
	}
}

// Request is a slash command invocation stripped of the Discord session.
type Request struct {
	Command     string
	Who         auth.Principal
	Options     []*discordgo.ApplicationCommandInteractionDataOption
	Attachments map[string]*discordgo.MessageAttachment
}

func (r Request) option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range r.Options {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func (r Request) str(name string) string {
	if o := r.option(name); o != nil {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func (r Request) integer(name string) int {
	if o := r.option(name); o != nil {
		return int(o.IntValue())
	}
	return 0
}

func (r Request) boolean(name string) bool {
	if o := r.option(name); o != nil {
		return o.BoolValue()
	}
	return false
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	minCoins := float64(1)
	playerOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "player",
		Description: "Player name, Cricheroes id or id",
		Required:    true,
	}
	teamOpt := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        name,
			Description: desc,
			Required:    true,
		}
	}
	coinsOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "coins",
		Description: "Price in coins",
		Required:    true,
		MinValue:    &minCoins,
		MaxValue:    ledger.TeamBudget,
	}
	confirmOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        "confirm",
		Description: "Set to true to confirm",
		Required:    false,
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "import",
			Description: "Import players from CSV (admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "csv",
					Description: "CSV text with a Player Name header",
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: "CSV file exported from the sheet",
				},
			},
		},
		{
			Name:        "player-add",
			Description: "Add a single player by name (admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Player name",
					Required:    true,
				},
			},
		},
		{
			Name:        "draw",
			Description: "Pick a random available player",
		},
		{
			Name:        "assign",
			Description: "Sell a player to a team (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{playerOpt, teamOpt("team", "Team name or id"), coinsOpt},
		},
		{
			Name:        "remove",
			Description: "Release a player from their team (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{playerOpt},
		},
		{
			Name:        "edit-coins",
			Description: "Change the price paid for a player (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{playerOpt, coinsOpt},
		},
		{
			Name:        "move",
			Description: "Move a player to another team (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{playerOpt, teamOpt("to", "Destination team name or id")},
		},
		{
			Name:        "team-rename",
			Description: "Rename a team (admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				teamOpt("team", "Team name or id"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "New team name",
					Required:    true,
				},
			},
		},
		{
			Name:        "team-reset",
			Description: "Release every player on a team (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{teamOpt("team", "Team name or id"), confirmOpt},
		},
		{
			Name:        "reset-all",
			Description: "Clear the player pool and all teams (admin only)",
			Options:     []*discordgo.ApplicationCommandOption{confirmOpt},
		},
		{
			Name:        "teams",
			Description: "Show team rosters and budgets",
		},
		{
			Name:        "available",
			Description: "List players not yet sold",
		},
		{
			Name:        "stats",
			Description: "Show auction progress",
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	req := Request{
		Command: data.Name,
		Who:     h.principal(i),
		Options: data.Options,
	}
	if data.Resolved != nil {
		req.Attachments = data.Resolved.Attachments
	}

	respond(s, i, h.Dispatch(context.Background(), req))
}

func (h *Handlers) principal(i *discordgo.InteractionCreate) auth.Principal {
	switch {
	case i.Member != nil && i.Member.User != nil:
		name := i.Member.Nick
		if name == "" {
			name = i.Member.User.Username
		}
		return h.gate.Resolve(i.Member.User.ID, name, i.Member.Roles)
	case i.User != nil:
		return h.gate.Resolve(i.User.ID, i.User.Username, nil)
	default:
		return auth.Anonymous
	}
}

// Dispatch runs a command and returns the reply text.
func (h *Handlers) Dispatch(ctx context.Context, req Request) string {
	ctx, span := h.tracer.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("command", req.Command),
			attribute.String("user_id", req.Who.ID),
		),
	)
	defer span.End()

	var (
		msg string
		err error
	)
	switch req.Command {
	case "import":
		msg, err = h.handleImport(ctx, req)
	case "player-add":
		msg, err = h.handlePlayerAdd(ctx, req)
	case "draw":
		msg, err = h.handleDraw(ctx)
	case "assign":
		msg, err = h.handleAssign(ctx, req)
	case "remove":
		msg, err = h.handleRemove(ctx, req)
	case "edit-coins":
		msg, err = h.handleEditCoins(ctx, req)
	case "move":
		msg, err = h.handleMove(ctx, req)
	case "team-rename":
		msg, err = h.handleTeamRename(ctx, req)
	case "team-reset":
		msg, err = h.handleTeamReset(ctx, req)
	case "reset-all":
		msg, err = h.handleResetAll(ctx, req)
	case "teams":
		msg = FormatTeams(h.ledger.Snapshot().Teams)
	case "available":
		msg = FormatAvailable(h.ledger.Available())
	case "stats":
		msg = FormatStats(h.ledger.Stats())
	default:
		msg = "Unknown command"
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.logger.InfoContext(ctx, "command failed",
			slog.String("command", req.Command),
			slog.String("user_id", req.Who.ID),
			slog.Any("error", err),
		)
		return Message(err)
	}
	return truncate(msg)
}

func (h *Handlers) handleImport(ctx context.Context, req Request) (string, error) {
	text := req.str("csv")
	if o := req.option("file"); o != nil {
		id, _ := o.Value.(string)
		att, ok := req.Attachments[id]
		if !ok {
			return "Could not read the attached file.", nil
		}
		if att.Size > maxAttachmentBytes {
			return fmt.Sprintf("File is too large (max %d KiB).", maxAttachmentBytes>>10), nil
		}
		body, err := h.fetch(ctx, att.URL)
		if err != nil {
			return "", fmt.Errorf("downloading %s: %w", att.Filename, err)
		}
		text = string(body)
	}
	if strings.TrimSpace(text) == "" {
		return "Provide CSV text or attach a CSV file. Headers expected: Player Name, Role, Mobile Number, Image URL, Cricheroes Id", nil
	}

	players, err := importer.ParseCSV(strings.NewReader(text))
	if err != nil {
		return "", err
	}
	res, err := h.ledger.ImportPlayers(ctx, req.Who, players)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("**Players imported**: %d processed.", res.Processed), nil
}

func (h *Handlers) handlePlayerAdd(ctx context.Context, req Request) (string, error) {
	name := req.str("name")
	if name == "" {
		return "Player name must not be blank.", nil
	}
	res, err := h.ledger.AddPlayer(ctx, req.Who, name)
	if err != nil {
		return "", err
	}
	if res.Added == 0 {
		return fmt.Sprintf("**%s** is already in the pool.", name), nil
	}
	return fmt.Sprintf("Added **%s** to the pool.", name), nil
}

func (h *Handlers) handleDraw(ctx context.Context) (string, error) {
	p, err := h.ledger.Draw(ctx)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Up next: **%s**", p.Name)
	if p.Role != "" {
		msg += fmt.Sprintf(" (%s)", p.Role)
	}
	if sharedNames(h.ledger.Available())[nameKey(p.Name)] {
		msg += fmt.Sprintf(" `%s`", p.Ref())
	}
	return msg, nil
}

func (h *Handlers) handleAssign(ctx context.Context, req Request) (string, error) {
	p, err := h.ledger.FindAvailable(req.str("player"))
	if err != nil {
		return "", err
	}
	team, err := h.ledger.FindTeam(req.str("team"))
	if err != nil {
		return "", err
	}
	coins := req.integer("coins")
	if err := h.ledger.AssignPlayer(ctx, req.Who, p, team.ID, coins); err != nil {
		return "", err
	}
	return fmt.Sprintf("**Player added**: %s → %s for %d coins", p.Name, team.Name, coins), nil
}

func (h *Handlers) handleRemove(ctx context.Context, req Request) (string, error) {
	p, team, err := h.ledger.FindRostered(req.str("player"))
	if err != nil {
		return "", err
	}
	if err := h.ledger.RemovePlayer(ctx, req.Who, team.ID, p.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Released **%s** from **%s**.", p.Name, team.Name), nil
}

func (h *Handlers) handleEditCoins(ctx context.Context, req Request) (string, error) {
	p, team, err := h.ledger.FindRostered(req.str("player"))
	if err != nil {
		return "", err
	}
	coins := req.integer("coins")
	if err := h.ledger.EditPlayerCoins(ctx, req.Who, team.ID, p.ID, coins); err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s** now costs %d coins on **%s**.", p.Name, coins, team.Name), nil
}

func (h *Handlers) handleMove(ctx context.Context, req Request) (string, error) {
	p, from, err := h.ledger.FindRostered(req.str("player"))
	if err != nil {
		return "", err
	}
	to, err := h.ledger.FindTeam(req.str("to"))
	if err != nil {
		return "", err
	}
	if from.ID == to.ID {
		return fmt.Sprintf("**%s** is already on **%s**.", p.Name, to.Name), nil
	}
	if err := h.ledger.MovePlayer(ctx, req.Who, from.ID, to.ID, p.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("**Player moved**: %s → %s", p.Name, to.Name), nil
}

func (h *Handlers) handleTeamRename(ctx context.Context, req Request) (string, error) {
	team, err := h.ledger.FindTeam(req.str("team"))
	if err != nil {
		return "", err
	}
	name := req.str("name")
	if err := h.ledger.RenameTeam(ctx, req.Who, team.ID, name); err != nil {
		return "", err
	}
	if name == "" {
		return fmt.Sprintf("**%s** keeps its name.", team.Name), nil
	}
	return fmt.Sprintf("Renamed **%s** to **%s**.", team.Name, name), nil
}

func (h *Handlers) handleTeamReset(ctx context.Context, req Request) (string, error) {
	team, err := h.ledger.FindTeam(req.str("team"))
	if err != nil {
		return "", err
	}
	if !req.boolean("confirm") {
		return fmt.Sprintf("This releases all %d players on **%s**. Run again with `confirm:true` to proceed.", len(team.Players), team.Name), nil
	}
	if err := h.ledger.ResetTeam(ctx, req.Who, team.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s** has been reset.", team.Name), nil
}

func (h *Handlers) handleResetAll(ctx context.Context, req Request) (string, error) {
	if !req.boolean("confirm") {
		return "This clears the player pool and every team. Run again with `confirm:true` to proceed.", nil
	}
	if err := h.ledger.ResetAll(ctx, req.Who); err != nil {
		return "", err
	}
	return "Auction reset. The pool is empty and all teams are back to their defaults.", nil
}

func httpFetch(client *http.Client) FetchFunc {
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxAttachmentBytes+1)); err != nil {
			return nil, err
		}
		if buf.Len() > maxAttachmentBytes {
			return nil, errors.New("attachment too large")
		}
		return buf.Bytes(), nil
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
