package service

import "context"

// SetBrowserFetch replaces the Chrome session download used after a 403.
func SetBrowserFetch(s *IngestService, fn func(ctx context.Context, feedURL string) ([]byte, error)) {
	s.browser = fn
}
