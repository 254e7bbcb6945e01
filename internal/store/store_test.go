package store_test

import (
	"strings"
	"testing"
	"time"

	"feedsync/internal/model"
	"feedsync/internal/store"

	"github.com/stretchr/testify/require"
)

func TestBuildProperties_CapsFields(t *testing.T) {
	tags := make([]string, 30)
	for i := range tags {
		tags[i] = strings.Repeat("t", 150)
	}
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := model.Entry{
		Title:       strings.Repeat("a", 2500),
		URL:         "https://example.com/1",
		GUID:        "guid-1",
		Source:      "Example",
		Summary:     strings.Repeat("b", 2100),
		PublishedAt: published,
		Tags:        tags,
	}

	props := store.BuildProperties(entry)
	require.Len(t, []rune(props.Title), store.MaxTextLength)
	require.Len(t, []rune(props.Summary), store.MaxTextLength)
	require.Len(t, props.Tags, store.MaxTags)
	for _, tag := range props.Tags {
		require.Len(t, tag, store.MaxTagLength)
	}
	require.NotNil(t, props.PublishedAt)
	require.True(t, props.PublishedAt.Equal(published))
	require.Equal(t, "guid-1", props.GUID)
	require.Equal(t, "Example", props.Source)
}

func TestBuildProperties_OptionalFields(t *testing.T) {
	props := store.BuildProperties(model.Entry{Title: "Hello", URL: "http://x/1", GUID: "g"})
	require.Nil(t, props.PublishedAt)
	require.Nil(t, props.Tags)
	require.Equal(t, "Hello", props.Title)
}
