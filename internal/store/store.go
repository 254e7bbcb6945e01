// Package store reconciles normalized entries against a remote record store.
package store

import (
	"context"
	"time"

	"feedsync/internal/model"
	"feedsync/internal/sanitize"
)

// Limits imposed by the remote store on a single record.
const (
	MaxTextLength = 2000
	MaxTags       = 25
	MaxTagLength  = 100
)

// Properties is the store-facing field set of one entry, already capped to
// the store limits.
type Properties struct {
	Title       string
	URL         string
	GUID        string
	Source      string
	Summary     string
	PublishedAt *time.Time
	Tags        []string
}

// Backend performs single wire calls against a store. Implementations return
// *RateLimitError when the store asks the client to slow down.
type Backend interface {
	FindByGUID(ctx context.Context, guid string) (*model.RemoteRecord, error)
	Create(ctx context.Context, props Properties) (model.RemoteRecord, error)
	Update(ctx context.Context, id string, props Properties) (model.RemoteRecord, error)
	Ping(ctx context.Context) error
}

// BuildProperties maps an entry onto store properties.
func BuildProperties(entry model.Entry) Properties {
	props := Properties{
		Title:   sanitize.Cap(entry.Title, MaxTextLength),
		URL:     entry.URL,
		GUID:    entry.GUID,
		Source:  entry.Source,
		Summary: sanitize.Cap(entry.Summary, MaxTextLength),
	}
	if !entry.PublishedAt.IsZero() {
		published := entry.PublishedAt
		props.PublishedAt = &published
	}

	tags := entry.Tags
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	if len(tags) > 0 {
		props.Tags = make([]string, len(tags))
		for i, tag := range tags {
			props.Tags[i] = sanitize.Cap(tag, MaxTagLength)
		}
	}
	return props
}
