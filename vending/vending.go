package vending

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mindsgn-studio/novawatch/internal/model"
)

const venueMarker = "nova_vend"

var (
	ErrNoDigits    = errors.New("price has no digits")
	ErrBadLocation = errors.New("malformed vending location")
)

// SanitizePrice drops everything except digits and dots and parses the
// integer part, so "1,234z" is 1234 and "12.5" is 12.
func SanitizePrice(raw string) (int, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	end := strings.IndexByte(cleaned, '.')
	if end < 0 {
		end = len(cleaned)
	}
	digits := cleaned[:end]
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrNoDigits, raw)
	}

	price, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return price, nil
}

// FormatPrice inserts a comma every three digits from the right.
func FormatPrice(price int) string {
	s := strconv.Itoa(price)
	sign := ""
	if price < 0 {
		sign, s = "-", s[1:]
	}

	n := len(s)
	if n <= 3 {
		return sign + s
	}
	out := make([]byte, 0, n+n/3)
	for i := 0; i < n; i++ {
		if i > 0 && (n-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return sign + string(out)
}

// MapPosition turns a location cell such as "#prontera,50,60" into the
// in-game command that leads to the vendor.
func MapPosition(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrBadLocation)
	}
	_, size := utf8.DecodeRuneInString(raw)
	coords := raw[size:]
	if coords == "" {
		return "", fmt.Errorf("%w: %q", ErrBadLocation, raw)
	}

	if !strings.Contains(coords, venueMarker) {
		return "@navi " + coords, nil
	}

	parts := strings.Split(coords, ",")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: %q", ErrBadLocation, raw)
	}
	x, y := strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	if x == "" || y == "" {
		return "", fmt.Errorf("%w: %q", ErrBadLocation, raw)
	}
	return fmt.Sprintf("@shopjump %s %s", x, y), nil
}

// ItemNameFromTitle keeps the part of a page title before " - ".
func ItemNameFromTitle(title string) string {
	name, _, _ := strings.Cut(title, " - ")
	return strings.TrimRight(name, " \t\r\n")
}

func OpenStall(itemID int) string {
	return fmt.Sprintf("@ws %d", itemID)
}

func ListTracked(items []model.TrackedItem) string {
	var b strings.Builder
	b.WriteString("Name | ID | Price\n")
	for _, item := range items {
		name := item.ItemName
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "%s | %d | %sz\n", name, item.ItemID, FormatPrice(item.WantedPrice))
	}
	return b.String()
}
