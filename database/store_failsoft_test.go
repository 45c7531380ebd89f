package database

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mindsgn-studio/novawatch/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const mockNS = "novawatch.tracked"

var commandFailure = mtest.CommandError{Code: 2, Name: "BadValue", Message: "simulated failure"}

func mockStore(mt *mtest.T) *Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStoreWithClient(mt.Client, "novawatch", "tracked", logger)
}

func TestStore_FailsSoftOnCommandError(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("list all", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(commandFailure))
		items := mockStore(mt).ListAll(ctx)
		if items == nil || len(items) != 0 {
			mt.Fatalf("expected empty non-nil slice, got %#v", items)
		}
	})

	mt.Run("list for user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(commandFailure))
		items := mockStore(mt).ListForUser(ctx, "u1")
		if items == nil || len(items) != 0 {
			mt.Fatalf("expected empty non-nil slice, got %#v", items)
		}
	})

	mt.Run("upsert threshold", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(commandFailure))
		item := model.TrackedItem{UserID: "u1", ItemID: 501, WantedPrice: 1000}
		if mockStore(mt).UpsertThreshold(ctx, item) {
			mt.Fatal("expected false on command error")
		}
	})

	mt.Run("set display name", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(commandFailure))
		if mockStore(mt).SetDisplayName(ctx, "u1", 501, "Red Potion") {
			mt.Fatal("expected false on command error")
		}
	})

	mt.Run("record notification", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(commandFailure))
		if mockStore(mt).RecordNotification(ctx, "u1", 501, 800, "@navi prontera,10,20") {
			mt.Fatal("expected false on command error")
		}
	})

	mt.Run("delete tracking", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(commandFailure))
		if mockStore(mt).DeleteTracking(ctx, "u1", 501) {
			mt.Fatal("expected false on command error")
		}
	})

	mt.Run("was already notified", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(commandFailure))
		if mockStore(mt).WasAlreadyNotified(ctx, "u1", 501, 800, "@navi prontera,10,20") {
			mt.Fatal("expected false on command error")
		}
	})
}

func TestStore_WasAlreadyNotified(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("no document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch))
		if mockStore(mt).WasAlreadyNotified(ctx, "u1", 501, 800, "@navi prontera,10,20") {
			mt.Fatal("missing record must not count as notified")
		}
	})

	doc := bson.D{
		{Key: "uuid", Value: "u1"},
		{Key: "id", Value: 501},
		{Key: "wantedPrice", Value: 1000},
		{Key: "lastNotification", Value: bson.D{
			{Key: "price", Value: 800},
			{Key: "mapCoords", Value: "@navi prontera,10,20"},
		}},
	}

	mt.Run("same snapshot", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch, doc))
		if !mockStore(mt).WasAlreadyNotified(ctx, "u1", 501, 800, "@navi prontera,10,20") {
			mt.Fatal("expected identical snapshot to be reported")
		}
	})

	mt.Run("different price", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch, doc))
		if mockStore(mt).WasAlreadyNotified(ctx, "u1", 501, 750, "@navi prontera,10,20") {
			mt.Fatal("different price must not be suppressed")
		}
	})
}

func TestStore_ListAllDecodes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decode", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch,
			bson.D{{Key: "uuid", Value: "u1"}, {Key: "id", Value: 501}, {Key: "wantedPrice", Value: 1000}},
			bson.D{{Key: "uuid", Value: "u2"}, {Key: "id", Value: 502}, {Key: "itemName", Value: "Jellopy"}, {Key: "wantedPrice", Value: 5}},
		))
		items := mockStore(mt).ListAll(context.Background())
		if len(items) != 2 {
			mt.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].UserID != "u1" || items[0].ItemID != 501 || items[0].WantedPrice != 1000 {
			mt.Errorf("first item = %+v", items[0])
		}
		if items[1].ItemName != "Jellopy" || items[1].LastNotification != nil {
			mt.Errorf("second item = %+v", items[1])
		}
	})
}
