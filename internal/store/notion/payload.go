package notion

import (
	"time"

	"feedsync/internal/model"
	"feedsync/internal/store"
)

// Database property names.
const (
	PropTitle       = "Title"
	PropURL         = "URL"
	PropGUID        = "GUID"
	PropSource      = "Source"
	PropSummary     = "Summary"
	PropPublishedAt = "PublishedAt"
	PropTags        = "Tags"
)

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Text      textContent `json:"text"`
	PlainText string      `json:"plain_text,omitempty"`
}

type selectOption struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

// PropertyValue is one page property in the shape Notion reads and returns.
// Only the field matching the property type is set.
type PropertyValue struct {
	Title       []richText     `json:"title,omitempty"`
	RichText    []richText     `json:"rich_text,omitempty"`
	URL         *string        `json:"url,omitempty"`
	Select      *selectOption  `json:"select,omitempty"`
	MultiSelect []selectOption `json:"multi_select,omitempty"`
	Date        *dateValue     `json:"date,omitempty"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createPageRequest struct {
	Parent     parent                   `json:"parent"`
	Properties map[string]PropertyValue `json:"properties"`
}

type updatePageRequest struct {
	Properties map[string]PropertyValue `json:"properties"`
}

type textFilter struct {
	Equals string `json:"equals"`
}

type queryFilter struct {
	Property string     `json:"property"`
	RichText textFilter `json:"rich_text"`
}

type queryRequest struct {
	Filter   queryFilter `json:"filter"`
	PageSize int         `json:"page_size"`
}

// Page is the subset of a Notion page object feedsync reads.
type Page struct {
	Object         string                   `json:"object"`
	ID             string                   `json:"id"`
	URL            string                   `json:"url"`
	CreatedTime    time.Time                `json:"created_time"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	Properties     map[string]PropertyValue `json:"properties,omitempty"`
}

type queryResponse struct {
	Object  string `json:"object"`
	Results []Page `json:"results"`
	HasMore bool   `json:"has_more"`
}

func text(s string) []richText {
	return []richText{{Text: textContent{Content: s}}}
}

// BuildPageProperties maps store properties onto Notion page properties.
// PublishedAt and Tags are only sent when present.
func BuildPageProperties(props store.Properties) map[string]PropertyValue {
	url := props.URL
	out := map[string]PropertyValue{
		PropTitle:   {Title: text(props.Title)},
		PropURL:     {URL: &url},
		PropGUID:    {RichText: text(props.GUID)},
		PropSource:  {Select: &selectOption{Name: props.Source}},
		PropSummary: {RichText: text(props.Summary)},
	}
	if props.PublishedAt != nil {
		out[PropPublishedAt] = PropertyValue{Date: &dateValue{Start: model.FormatISO8601(*props.PublishedAt)}}
	}
	if len(props.Tags) > 0 {
		tags := make([]selectOption, len(props.Tags))
		for i, tag := range props.Tags {
			tags[i] = selectOption{Name: tag}
		}
		out[PropTags] = PropertyValue{MultiSelect: tags}
	}
	return out
}

// PlainText joins the text segments of a title or rich_text property.
func (v PropertyValue) PlainText() string {
	segments := v.Title
	if len(segments) == 0 {
		segments = v.RichText
	}
	var s string
	for _, seg := range segments {
		if seg.PlainText != "" {
			s += seg.PlainText
			continue
		}
		s += seg.Text.Content
	}
	return s
}

func (p Page) record() model.RemoteRecord {
	return model.RemoteRecord{
		ID:        p.ID,
		URL:       p.URL,
		CreatedAt: p.CreatedTime,
		UpdatedAt: p.LastEditedTime,
	}
}
