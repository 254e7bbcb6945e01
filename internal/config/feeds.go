package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"feedsync/internal/model"
)

type feedList struct {
	Feeds []model.FeedSource `json:"feeds" yaml:"feeds"`
}

// LoadFeeds reads the feed list. Files ending in .yaml or .yml are read as
// YAML, everything else as JSON.
func LoadFeeds(path string) ([]model.FeedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: configuration file %s not found", ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	var list feedList
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: invalid YAML in %s: %v", ErrConfig, path, err)
		}
	default:
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON in %s: %v", ErrConfig, path, err)
		}
	}

	if len(list.Feeds) == 0 {
		return nil, fmt.Errorf("%w: no feeds configured in %s", ErrConfig, path)
	}

	feeds := make([]model.FeedSource, 0, len(list.Feeds))
	for i, f := range list.Feeds {
		f.URL = strings.TrimSpace(f.URL)
		f.Name = strings.TrimSpace(f.Name)
		if f.URL == "" {
			return nil, fmt.Errorf("%w: feed at index %d has no url", ErrConfig, i)
		}
		if f.Name == "" {
			return nil, fmt.Errorf("%w: feed at index %d has no name", ErrConfig, i)
		}
		tags := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		f.Tags = tags
		feeds = append(feeds, f)
	}
	return feeds, nil
}
