package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/internal/pkg/metrics"
	"github.com/mindsgn-studio/novawatch/vending"
)

const (
	commandTimeout = 10 * time.Second
	embedColor     = 0x0099ff
)

// Store is the part of the tracking store the bot needs.
type Store interface {
	ListForUser(ctx context.Context, userID string) []model.TrackedItem
	UpsertThreshold(ctx context.Context, item model.TrackedItem) bool
	DeleteTracking(ctx context.Context, userID string, itemID int) bool
	WasAlreadyNotified(ctx context.Context, userID string, itemID int, price int, location string) bool
	RecordNotification(ctx context.Context, userID string, itemID int, price int, location string) bool
}

type messenger interface {
	DirectMessage(userID string, embed *discordgo.MessageEmbed) error
}

type commandHandler func(ctx context.Context, userID string, opts optionMap) *discordgo.InteractionResponseData

type Bot struct {
	session  *discordgo.Session
	guildID  string
	store    Store
	dm       messenger
	site     vending.Site
	logger   *slog.Logger
	handlers map[string]commandHandler

	registered []*discordgo.ApplicationCommand
}

func New(cfg model.Config, store Store, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	b := newBot(store, sessionMessenger{session: session}, vending.NewSite(cfg.BaseURL), logger)
	b.session = session
	b.guildID = cfg.GuildID
	session.AddHandler(b.onInteraction)
	return b, nil
}

func newBot(store Store, dm messenger, site vending.Site, logger *slog.Logger) *Bot {
	b := &Bot{
		store:  store,
		dm:     dm,
		site:   site,
		logger: logger.With(slog.String("component", "bot")),
	}
	b.handlers = map[string]commandHandler{
		"track":   b.handleTrack,
		"untrack": b.handleUntrack,
		"tracked": b.handleTracked,
	}
	return b
}

// Open connects to the gateway and registers the guild commands. Failing to
// authenticate is returned as an error.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	appID := b.session.State.User.ID
	for _, cmd := range commands {
		created, err := b.session.ApplicationCommandCreate(appID, b.guildID, cmd)
		if err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
		b.registered = append(b.registered, created)
	}
	b.logger.Info("discord bot ready",
		slog.String("user", b.session.State.User.Username),
		slog.String("guild", b.guildID),
		slog.Int("commands", len(commands)))
	return nil
}

// Close removes the commands registered by Open and closes the gateway.
func (b *Bot) Close() error {
	if b.session.State != nil && b.session.State.User != nil {
		appID := b.session.State.User.ID
		for _, cmd := range b.registered {
			if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
				b.logger.Warn("remove command failed",
					slog.String("command", cmd.Name),
					slog.String("error", err.Error()))
			}
		}
	}
	b.registered = nil
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	resp := b.dispatch(ctx, data.Name, interactionUserID(i.Interaction), data.Options)
	if resp == nil {
		return
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: resp,
	})
	if err != nil {
		b.logger.Warn("respond to command failed",
			slog.String("command", data.Name),
			slog.String("error", err.Error()))
	}
}

func (b *Bot) dispatch(ctx context.Context, name string, userID string, options []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionResponseData {
	handler, ok := b.handlers[name]
	if !ok || userID == "" {
		return nil
	}
	metrics.CommandsTotal.WithLabelValues(name).Inc()
	b.logger.Debug("command received", slog.String("command", name), slog.String("uuid", userID))

	resp := handler(ctx, userID, newOptionMap(options))
	resp.Flags |= discordgo.MessageFlagsEphemeral
	return resp
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

type sessionMessenger struct {
	session *discordgo.Session
}

func (m sessionMessenger) DirectMessage(userID string, embed *discordgo.MessageEmbed) error {
	channel, err := m.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("create dm channel: %w", err)
	}
	if _, err := m.session.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		return fmt.Errorf("send embed: %w", err)
	}
	return nil
}
