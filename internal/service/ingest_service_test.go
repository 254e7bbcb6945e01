package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedsync/internal/model"
	"feedsync/internal/network"
	"feedsync/internal/service"

	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://example.com</link>
<description>Desc</description>
<item>
  <title>Item 1</title>
  <link>https://example.com/1</link>
  <guid>item-1</guid>
  <description>&lt;p&gt;Content 1&lt;/p&gt;</description>
  <category>Go</category>
  <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
</item>
<item>
  <title>Item 2</title>
  <description>Missing link</description>
</item>
<item>
  <title></title>
  <link>https://example.com/3</link>
</item>
<item>
  <title>Item 4</title>
  <link>https://example.com/4</link>
</item>
</channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <id>urn:feed</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Atom Entry</title>
    <link href="https://example.com/atom/1"/>
    <id>urn:entry:1</id>
    <updated>2024-01-02T00:00:00Z</updated>
    <summary>Short &amp; sweet</summary>
    <category term="News"/>
  </entry>
</feed>`

// Vertical tab is not a legal XML character.
const brokenRSS = "<?xml version=\"1.0\"?><rss version=\"2.0\"><channel><title>T</title>" +
	"<item><title>Bad \x0b char</title><link>https://example.com/b</link></item></channel></rss>"

func newIngestor(opts service.IngestOptions) *service.IngestService {
	return service.NewIngestService(network.NewClientFactory(""), newNormalizer(), opts)
}

func serve(t *testing.T, status int, body string, check func(*http.Request)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestIngestService_Fetch_FiltersInvalidItems(t *testing.T) {
	var userAgent string
	url := serve(t, http.StatusOK, sampleRSS, func(r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
	})

	entries, err := newIngestor(service.IngestOptions{UserAgent: "feedsync-test"}).
		Fetch(context.Background(), model.FeedSource{URL: url, Name: "Test", Tags: []string{"Tech"}})
	require.NoError(t, err)
	require.Equal(t, "feedsync-test", userAgent)
	require.Len(t, entries, 2)

	for _, e := range entries {
		require.NotEmpty(t, e.Title)
		require.NotEmpty(t, e.URL)
		require.Equal(t, "Test", e.Source)
	}

	first := entries[0]
	require.Equal(t, "Item 1", first.Title)
	require.Equal(t, "item-1", first.GUID)
	require.Equal(t, "Content 1", first.Summary)
	require.Equal(t, []string{"tech", "go"}, first.Tags)
	require.True(t, first.PublishedParsed)
	require.True(t, first.PublishedAt.Equal(time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)))

	second := entries[1]
	require.Equal(t, "Item 4", second.Title)
	require.Equal(t, md5Hex("https://example.com/4"), second.GUID)
	require.False(t, second.PublishedParsed)
}

func TestIngestService_Fetch_Atom(t *testing.T) {
	url := serve(t, http.StatusOK, sampleAtom, nil)

	entries, err := newIngestor(service.IngestOptions{}).Fetch(context.Background(), model.FeedSource{URL: url, Name: "Atom"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "urn:entry:1", entries[0].GUID)
	require.Equal(t, "https://example.com/atom/1", entries[0].URL)
	require.Equal(t, "Short & sweet", entries[0].Summary)
	require.Equal(t, []string{"news"}, entries[0].Tags)
}

func TestIngestService_Fetch_RecoversInvalidXMLChars(t *testing.T) {
	url := serve(t, http.StatusOK, brokenRSS, nil)

	entries, err := newIngestor(service.IngestOptions{}).Fetch(context.Background(), model.FeedSource{URL: url, Name: "Broken"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Title, "Bad")
	require.NotContains(t, entries[0].Title, "\x0b")
}

func TestIngestService_Fetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	entries, err := newIngestor(service.IngestOptions{Timeout: time.Second}).
		Fetch(context.Background(), model.FeedSource{URL: url, Name: "Gone"})
	require.ErrorIs(t, err, service.ErrFeedFetch)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestIngestService_Fetch_HTTPErrors(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		url := serve(t, status, "nope", nil)
		entries, err := newIngestor(service.IngestOptions{}).Fetch(context.Background(), model.FeedSource{URL: url, Name: "Err"})
		require.ErrorIs(t, err, service.ErrFeedFetch)
		require.Empty(t, entries)
	}
}

func TestIngestService_Fetch_ForbiddenWithoutFallback(t *testing.T) {
	url := serve(t, http.StatusForbidden, "blocked", nil)

	ingestor := newIngestor(service.IngestOptions{BrowserFallback: false})
	called := false
	service.SetBrowserFetch(ingestor, func(ctx context.Context, feedURL string) ([]byte, error) {
		called = true
		return nil, nil
	})

	entries, err := ingestor.Fetch(context.Background(), model.FeedSource{URL: url, Name: "Blocked"})
	require.ErrorIs(t, err, service.ErrFeedFetch)
	require.ErrorContains(t, err, "HTTP 403")
	require.Empty(t, entries)
	require.False(t, called)
}

func TestIngestService_Fetch_ForbiddenUsesBrowserFallback(t *testing.T) {
	url := serve(t, http.StatusForbidden, "blocked", nil)

	ingestor := newIngestor(service.IngestOptions{BrowserFallback: true})
	var fallbackURL string
	service.SetBrowserFetch(ingestor, func(ctx context.Context, feedURL string) ([]byte, error) {
		fallbackURL = feedURL
		return []byte(sampleAtom), nil
	})

	entries, err := ingestor.Fetch(context.Background(), model.FeedSource{URL: url, Name: "Blocked"})
	require.NoError(t, err)
	require.Equal(t, url, fallbackURL)
	require.Len(t, entries, 1)
	require.Equal(t, "urn:entry:1", entries[0].GUID)
}

func TestIngestService_Fetch_BrowserFallbackFails(t *testing.T) {
	url := serve(t, http.StatusForbidden, "blocked", nil)

	ingestor := newIngestor(service.IngestOptions{BrowserFallback: true})
	service.SetBrowserFetch(ingestor, func(ctx context.Context, feedURL string) ([]byte, error) {
		return nil, errors.New("HTTP 403 (browser session)")
	})

	entries, err := ingestor.Fetch(context.Background(), model.FeedSource{URL: url, Name: "Blocked"})
	require.ErrorIs(t, err, service.ErrFeedFetch)
	require.ErrorContains(t, err, "browser session")
	require.Empty(t, entries)
}

func TestIngestService_Fetch_FallbackOnlyOnForbidden(t *testing.T) {
	url := serve(t, http.StatusNotFound, "missing", nil)

	ingestor := newIngestor(service.IngestOptions{BrowserFallback: true})
	called := false
	service.SetBrowserFetch(ingestor, func(ctx context.Context, feedURL string) ([]byte, error) {
		called = true
		return []byte(sampleAtom), nil
	})

	_, err := ingestor.Fetch(context.Background(), model.FeedSource{URL: url, Name: "Missing"})
	require.ErrorIs(t, err, service.ErrFeedFetch)
	require.False(t, called)
}

func TestIngestService_Fetch_Unparseable(t *testing.T) {
	url := serve(t, http.StatusOK, "this is not a feed", nil)
	entries, err := newIngestor(service.IngestOptions{}).Fetch(context.Background(), model.FeedSource{URL: url, Name: "Text"})
	require.ErrorIs(t, err, service.ErrFeedFetch)
	require.Empty(t, entries)
}

func TestIngestService_Fetch_InjectedClient(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return httptest.NewRecorder().Result(), nil
		}),
	}
	ingestor := service.NewIngestService(network.NewClientFactoryForTest(client), newNormalizer(), service.IngestOptions{})
	_, err := ingestor.Fetch(context.Background(), model.FeedSource{URL: "https://example.com/empty", Name: "Empty"})
	require.ErrorIs(t, err, service.ErrFeedFetch)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
