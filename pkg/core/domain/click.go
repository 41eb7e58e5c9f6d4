package domain

import "time"

// Click represents one resolution of a short link. Clicks are append-only.
type Click struct {
	LinkID    string    `json:"link_id"`
	Origin    string    `json:"origin"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClickEvent is published after a click has been durably recorded
type ClickEvent struct {
	ShortCode string    `json:"short_code"`
	OwnerID   string    `json:"owner_id"`
	Origin    string    `json:"origin"`
	Country   string    `json:"country,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
}
