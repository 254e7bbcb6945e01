package model

import "time"

// RemoteRecord is the store's handle for a synced entry.
type RemoteRecord struct {
	ID        string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
