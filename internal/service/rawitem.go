package service

import (
	"strings"

	"github.com/mmcdole/gofeed"
)

// RawItem exposes the optional fields of one parsed feed item. Getters return
// empty values for fields the feed dialect does not carry.
type RawItem interface {
	Title() string
	Link() string
	Identifier() string
	// DateCandidates are probed in order: published, pubDate, updated, date.
	DateCandidates() []string
	// SummaryCandidates are probed in order: summary/description, content.
	SummaryCandidates() []string
	// TaxonomyTerms lists tag and category terms in feed order.
	TaxonomyTerms() []string
}

type gofeedItem struct {
	item *gofeed.Item
}

// NewGofeedItem wraps a gofeed item as a RawItem.
func NewGofeedItem(item *gofeed.Item) RawItem {
	return gofeedItem{item: item}
}

func (g gofeedItem) Title() string {
	return g.item.Title
}

func (g gofeedItem) Link() string {
	if g.item.Link != "" {
		return g.item.Link
	}
	for _, link := range g.item.Links {
		if strings.TrimSpace(link) != "" {
			return link
		}
	}
	return ""
}

func (g gofeedItem) Identifier() string {
	return g.item.GUID
}

func (g gofeedItem) DateCandidates() []string {
	candidates := []string{g.item.Published}
	if g.item.Custom != nil {
		candidates = append(candidates, g.item.Custom["pubDate"])
	}
	candidates = append(candidates, g.item.Updated)
	if dc := g.item.DublinCoreExt; dc != nil {
		candidates = append(candidates, dc.Date...)
	}
	return candidates
}

func (g gofeedItem) SummaryCandidates() []string {
	return []string{g.item.Description, g.item.Content}
}

func (g gofeedItem) TaxonomyTerms() []string {
	terms := append([]string(nil), g.item.Categories...)
	if dc := g.item.DublinCoreExt; dc != nil {
		terms = append(terms, dc.Subject...)
	}
	return terms
}
