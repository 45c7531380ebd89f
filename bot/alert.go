package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/internal/pkg/metrics"
	"github.com/mindsgn-studio/novawatch/vending"
)

// SendAlert delivers a price alert by direct message unless the user was
// already notified about the same price and location. The snapshot is only
// recorded after a successful delivery.
func (b *Bot) SendAlert(ctx context.Context, alert model.Alert) error {
	if b.store.WasAlreadyNotified(ctx, alert.UserID, alert.ItemID, alert.Price, alert.Location) {
		metrics.AlertsTotal.WithLabelValues("suppressed").Inc()
		b.logger.Debug("alert already sent",
			slog.String("uuid", alert.UserID),
			slog.Int("id", alert.ItemID),
			slog.Int("price", alert.Price))
		return nil
	}

	if err := b.dm.DirectMessage(alert.UserID, b.alertEmbed(alert)); err != nil {
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("send dm: %w", err)
	}
	metrics.AlertsTotal.WithLabelValues("sent").Inc()

	if !b.store.RecordNotification(ctx, alert.UserID, alert.ItemID, alert.Price, alert.Location) {
		b.logger.Warn("alert sent but not recorded",
			slog.String("uuid", alert.UserID),
			slog.Int("id", alert.ItemID))
	}
	b.logger.Info("alert sent",
		slog.String("uuid", alert.UserID),
		slog.Int("id", alert.ItemID),
		slog.Int("price", alert.Price),
		slog.String("location", alert.Location))
	return nil
}

func (b *Bot) alertEmbed(alert model.Alert) *discordgo.MessageEmbed {
	name := alert.ItemName
	if name == "" {
		name = "Item " + strconv.Itoa(alert.ItemID)
	}
	return &discordgo.MessageEmbed{
		Color: embedColor,
		URL:   b.site.ItemURL(alert.ItemID),
		Author: &discordgo.MessageEmbedAuthor{
			Name:    name,
			IconURL: b.site.IconURL(alert.ItemID),
			URL:     b.site.ItemURL(alert.ItemID),
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: b.site.ImageURL(alert.ItemID),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Current Lower Price", Value: vending.FormatPrice(alert.Price) + "z"},
			{Name: "Map Navigation", Value: alert.Location},
			{Name: "Open Stall", Value: vending.OpenStall(alert.ItemID)},
		},
	}
}
