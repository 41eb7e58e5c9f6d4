package domain

import "time"

// Link represents a shortened URL owned by a single user
type Link struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	DestinationURL string    `json:"destination_url"`
	ShortCode      string    `json:"short_code"`
	Clicks         int64     `json:"clicks"`
	CreatedAt      time.Time `json:"created_at"`
}
