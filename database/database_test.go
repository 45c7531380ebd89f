package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mindsgn-studio/novawatch/internal/model"
	"go.mongodb.org/mongo-driver/bson"
)

func getStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB tests")
	}

	ctx := context.Background()
	client, err := Connect(ctx, uri)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	dbName := fmt.Sprintf("novawatch_test_%d", time.Now().UnixNano())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStoreWithClient(client, dbName, "tracked", logger)
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s, ctx
}

func TestUpsertThreshold_SingleRecord(t *testing.T) {
	s, ctx := getStore(t)

	if !s.UpsertThreshold(ctx, model.TrackedItem{UserID: "u1", ItemID: 909, WantedPrice: 1000}) {
		t.Fatalf("first upsert failed")
	}
	if !s.SetDisplayName(ctx, "u1", 909, "Jellopy") {
		t.Fatalf("set display name failed")
	}
	if !s.RecordNotification(ctx, "u1", 909, 800, "@navi prontera,10,20") {
		t.Fatalf("record notification failed")
	}
	if !s.UpsertThreshold(ctx, model.TrackedItem{UserID: "u1", ItemID: 909, WantedPrice: 500}) {
		t.Fatalf("second upsert failed")
	}

	n, err := s.tracked.CountDocuments(ctx, bson.M{"uuid": "u1", "id": 909})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one record, got %d", n)
	}

	items := s.ListForUser(ctx, "u1")
	if len(items) != 1 {
		t.Fatalf("expected one item for user, got %d", len(items))
	}
	got := items[0]
	if got.WantedPrice != 500 {
		t.Fatalf("expected threshold 500, got %d", got.WantedPrice)
	}
	if got.ItemName != "Jellopy" {
		t.Fatalf("expected name to survive upsert, got %q", got.ItemName)
	}
	if got.LastNotification == nil || got.LastNotification.Price != 800 {
		t.Fatalf("expected notification snapshot to survive upsert, got %+v", got.LastNotification)
	}
}

func TestSetDisplayName_OnlyOnce(t *testing.T) {
	s, ctx := getStore(t)

	s.UpsertThreshold(ctx, model.TrackedItem{UserID: "u1", ItemID: 501, WantedPrice: 10})
	s.SetDisplayName(ctx, "u1", 501, "Red Potion")
	s.SetDisplayName(ctx, "u1", 501, "Renamed")

	items := s.ListForUser(ctx, "u1")
	if len(items) != 1 || items[0].ItemName != "Red Potion" {
		t.Fatalf("expected first name to stick, got %+v", items)
	}
}

func TestWasAlreadyNotified(t *testing.T) {
	s, ctx := getStore(t)

	if s.WasAlreadyNotified(ctx, "ghost", 1, 1, "x") {
		t.Fatalf("missing record must not count as notified")
	}

	s.UpsertThreshold(ctx, model.TrackedItem{UserID: "u1", ItemID: 909, WantedPrice: 1000})
	if s.WasAlreadyNotified(ctx, "u1", 909, 800, "@navi prontera,10,20") {
		t.Fatalf("record without snapshot must not count as notified")
	}

	s.RecordNotification(ctx, "u1", 909, 800, "@navi prontera,10,20")

	tests := []struct {
		price    int
		location string
		want     bool
	}{
		{800, "@navi prontera,10,20", true},
		{750, "@navi prontera,10,20", false},
		{800, "@shopjump 100 200", false},
	}
	for _, tt := range tests {
		if got := s.WasAlreadyNotified(ctx, "u1", 909, tt.price, tt.location); got != tt.want {
			t.Errorf("WasAlreadyNotified(%d, %q) = %v, want %v", tt.price, tt.location, got, tt.want)
		}
	}
}

func TestDeleteTracking(t *testing.T) {
	s, ctx := getStore(t)

	s.UpsertThreshold(ctx, model.TrackedItem{UserID: "u1", ItemID: 909, WantedPrice: 1000})
	s.UpsertThreshold(ctx, model.TrackedItem{UserID: "u2", ItemID: 909, WantedPrice: 2000})

	if !s.DeleteTracking(ctx, "u1", 909) {
		t.Fatalf("delete failed")
	}
	if !s.DeleteTracking(ctx, "u1", 909) {
		t.Fatalf("deleting a missing record should succeed")
	}

	all := s.ListAll(ctx)
	if len(all) != 1 || all[0].UserID != "u2" {
		t.Fatalf("expected only u2 to remain, got %+v", all)
	}
}
