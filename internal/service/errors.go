package service

import "errors"

// ErrFeedFetch wraps every feed-level failure: network errors, HTTP error
// statuses and documents the parser cannot recover.
var ErrFeedFetch = errors.New("feed fetch failed")
