package service

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"feedsync/internal/logger"
	"feedsync/internal/model"
	"feedsync/internal/sanitize"
)

// SummaryMaxLength is the summary length before the ellipsis is added.
const SummaryMaxLength = 500

// Normalizer turns raw feed items into canonical entries.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock uses now as the fallback publication time source.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize builds an Entry from item. It returns false for items without a
// title or link, and for items that could not be read.
func (n *Normalizer) Normalize(item RawItem, feedName string, feedTags []string) (entry model.Entry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("entry extract failed", "module", "service", "action", "normalize", "resource", "entry", "result", "failed", "feed", feedName, "error", fmt.Sprint(r))
			entry, ok = model.Entry{}, false
		}
	}()

	title := strings.TrimSpace(item.Title())
	link := strings.TrimSpace(item.Link())
	if title == "" || link == "" {
		return model.Entry{}, false
	}

	published, parsed := parsePublished(item.DateCandidates())
	if !parsed {
		published = n.now().UTC()
	}

	return model.Entry{
		Title:           title,
		URL:             link,
		GUID:            entryGUID(item.Identifier(), link, published, parsed),
		PublishedAt:     published,
		PublishedParsed: parsed,
		Source:          feedName,
		Summary:         extractSummary(item.SummaryCandidates()),
		Tags:            normalizeTags(feedTags, item.TaxonomyTerms()),
	}, true
}

func parsePublished(candidates []string) (time.Time, bool) {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		t, err := dateparse.ParseIn(candidate, time.UTC)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// entryGUID prefers the declared identifier. The derived form only includes
// the publication time when it came from the item, so re-runs produce the
// same value for undated items.
func entryGUID(identifier, link string, published time.Time, parsed bool) string {
	if id := strings.TrimSpace(identifier); id != "" {
		return id
	}
	input := link
	if parsed {
		input += model.FormatISO8601(published)
	}
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

func extractSummary(candidates []string) string {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		return sanitize.Truncate(sanitize.Clean(candidate), SummaryMaxLength)
	}
	return ""
}

func normalizeTags(feedTags, terms []string) []string {
	tags := make([]string, 0, len(feedTags)+len(terms))
	seen := make(map[string]struct{}, cap(tags))
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	for _, tag := range feedTags {
		add(tag)
	}
	for _, term := range terms {
		add(term)
	}
	return tags
}
