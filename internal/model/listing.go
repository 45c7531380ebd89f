package model

// Listing is what the scraper extracts from an item's vending page.
// Offers keep the page order, so Offers[0] is the cheapest one.
type Listing struct {
	ItemID int
	Name   string
	Offers []Offer
}

// Offer holds the raw cell text of one vending row.
type Offer struct {
	Price    string
	Location string
}

type Alert struct {
	UserID   string
	ItemID   int
	ItemName string
	Price    int
	Location string
}
