package model

// FeedResult holds the counters for a single feed.
type FeedResult struct {
	Name    string
	Created int
	Updated int
	Failed  int
	// Empty marks a feed that was fetched but held no valid entries.
	Empty bool
	Err   error
}

// SyncResult aggregates a whole run.
type SyncResult struct {
	FeedsProcessed int
	FeedsFailed    int
	EntriesCreated int
	EntriesUpdated int
	EntriesFailed  int
	Feeds          []FeedResult
}

// Total returns the number of entries written to the store.
func (r SyncResult) Total() int {
	return r.EntriesCreated + r.EntriesUpdated
}

// Add folds a feed result into the aggregate.
func (r *SyncResult) Add(fr FeedResult) {
	r.Feeds = append(r.Feeds, fr)
	if fr.Err != nil {
		r.FeedsFailed++
		return
	}
	if fr.Empty {
		return
	}
	r.FeedsProcessed++
	r.EntriesCreated += fr.Created
	r.EntriesUpdated += fr.Updated
	r.EntriesFailed += fr.Failed
}
