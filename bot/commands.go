package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/vending"
)

const storeFailureReply = "Something went wrong while talking to the database, please try again later."

var minOne = 1.0

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "track",
		Description: "Starts tracking the price of an item via its ID, or updates the price of an already tracked one.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "id",
				Description: "ID corresponding to the item.",
				Required:    true,
				MinValue:    &minOne,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "price",
				Description: "You get notified when the lowest price drops below this value.",
				Required:    true,
				MinValue:    &minOne,
			},
		},
	},
	{
		Name:        "untrack",
		Description: "Stop tracking an item via its ID.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "id",
				Description: "ID corresponding to the item.",
				Required:    true,
				MinValue:    &minOne,
			},
		},
	},
	{
		Name:        "tracked",
		Description: "Shows the items that you are tracking.",
	},
}

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func newOptionMap(options []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// positiveInt returns the named integer option, or false when it is missing
// or not positive.
func (m optionMap) positiveInt(name string) (int, bool) {
	opt, ok := m[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionInteger {
		return 0, false
	}
	v := opt.IntValue()
	if v <= 0 || v > int64(^uint32(0)>>1) {
		return 0, false
	}
	return int(v), true
}

func textReply(content string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Content: content}
}

func (b *Bot) handleTrack(ctx context.Context, userID string, opts optionMap) *discordgo.InteractionResponseData {
	itemID, ok := opts.positiveInt("id")
	if !ok {
		return textReply("The item ID must be a positive number.")
	}
	price, ok := opts.positiveInt("price")
	if !ok {
		return textReply("The price must be a positive number.")
	}

	item := model.TrackedItem{
		ItemID:      itemID,
		UserID:      userID,
		WantedPrice: price,
	}
	if !b.store.UpsertThreshold(ctx, item) {
		return textReply(storeFailureReply)
	}

	b.logger.Info("tracking item",
		slog.String("uuid", userID),
		slog.Int("id", itemID),
		slog.Int("wanted_price", price))
	return textReply(fmt.Sprintf(
		"Tracking item with ID %d, and getting notifications when prices are lower than %sz.",
		itemID, vending.FormatPrice(price)))
}

func (b *Bot) handleUntrack(ctx context.Context, userID string, opts optionMap) *discordgo.InteractionResponseData {
	itemID, ok := opts.positiveInt("id")
	if !ok {
		return textReply("The item ID must be a positive number.")
	}
	if !b.store.DeleteTracking(ctx, userID, itemID) {
		return textReply(storeFailureReply)
	}

	b.logger.Info("untracking item", slog.String("uuid", userID), slog.Int("id", itemID))
	return textReply(fmt.Sprintf("Untracking item with ID %d.", itemID))
}

func (b *Bot) handleTracked(ctx context.Context, userID string, _ optionMap) *discordgo.InteractionResponseData {
	items := b.store.ListForUser(ctx, userID)

	description := "You are not tracking any items yet. Use /track to start."
	if len(items) > 0 {
		description = vending.ListTracked(items)
	}
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Tracked Items",
				Description: description,
				Color:       embedColor,
			},
		},
	}
}
