package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrackedItem is one user's watch on one vending item. (UserID, ItemID) is unique.
type TrackedItem struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	ItemID           int                `bson:"id"`
	UserID           string             `bson:"uuid"`
	ItemName         string             `bson:"itemName,omitempty"`
	WantedPrice      int                `bson:"wantedPrice"`
	LastNotification *Notification      `bson:"lastNotification,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt,omitempty"`
	UpdatedAt        time.Time          `bson:"updatedAt,omitempty"`
}

// Notification is the snapshot of the last alert sent for a tracked item.
type Notification struct {
	Price     int    `bson:"price"`
	MapCoords string `bson:"mapCoords"`
}
