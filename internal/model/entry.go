package model

import "time"

// Entry is the canonical record built from one feed item.
type Entry struct {
	Title       string
	URL         string
	GUID        string
	PublishedAt time.Time
	// PublishedParsed is false when PublishedAt fell back to the fetch time.
	PublishedParsed bool
	Source          string
	Summary         string
	Tags            []string
}
