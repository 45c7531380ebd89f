package vending

import (
	"fmt"
	"strings"
)

const DefaultBaseURL = "https://www.novaragnarok.com"

// Site builds the URLs of the vending site.
type Site struct {
	BaseURL string
}

func NewSite(baseURL string) Site {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Site{BaseURL: baseURL}
}

func (s Site) ItemURL(itemID int) string {
	return fmt.Sprintf("%s/?module=vending&action=item&id=%d", s.BaseURL, itemID)
}

func (s Site) IconURL(itemID int) string {
	return fmt.Sprintf("%s/data/items/icons2/%d.png", s.BaseURL, itemID)
}

func (s Site) ImageURL(itemID int) string {
	return fmt.Sprintf("%s/data/items/images2/%d.png", s.BaseURL, itemID)
}
