package model

// FeedSource is one configured feed.
type FeedSource struct {
	URL  string   `json:"url" yaml:"url"`
	Name string   `json:"name" yaml:"name"`
	Tags []string `json:"tags" yaml:"tags"`
}
