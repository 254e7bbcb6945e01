package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Noooste/azuretls-client"
	"github.com/mmcdole/gofeed"

	"feedsync/internal/config"
	"feedsync/internal/logger"
	"feedsync/internal/model"
	"feedsync/internal/network"
)

// maxFeedSize caps how much of a feed document is read.
const maxFeedSize = 16 << 20

var errForbidden = errors.New("HTTP 403")

type Ingestor interface {
	Fetch(ctx context.Context, feed model.FeedSource) ([]model.Entry, error)
}

type IngestOptions struct {
	UserAgent string
	Timeout   time.Duration
	// BrowserFallback retries a 403 through a Chrome-fingerprinted session.
	BrowserFallback bool
}

type IngestService struct {
	clients    *network.ClientFactory
	normalizer *Normalizer
	opts       IngestOptions
	browser    func(ctx context.Context, feedURL string) ([]byte, error)
}

var _ Ingestor = (*IngestService)(nil)

func NewIngestService(clients *network.ClientFactory, normalizer *Normalizer, opts IngestOptions) *IngestService {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	s := &IngestService{clients: clients, normalizer: normalizer, opts: opts}
	s.browser = s.downloadBrowser
	return s
}

// Fetch downloads and parses feed and returns its valid entries in feed
// order. On failure it returns an empty slice and an error wrapping
// ErrFeedFetch.
func (s *IngestService) Fetch(ctx context.Context, feed model.FeedSource) ([]model.Entry, error) {
	body, err := s.download(ctx, feed.URL)
	if err != nil {
		logger.Warn("feed fetch failed", "module", "service", "action", "fetch", "resource", "feed", "result", "failed", "feed", feed.Name, "url", feed.URL, "error", err)
		return []model.Entry{}, fmt.Errorf("%w: %s: %v", ErrFeedFetch, feed.Name, err)
	}

	parsed, err := parseFeed(body)
	if err != nil {
		logger.Warn("feed parse warning", "module", "service", "action", "parse", "resource", "feed", "result", "retry", "feed", feed.Name, "error", err)
		parsed, err = parseFeed(stripInvalidXMLChars(body))
	}
	if err != nil {
		logger.Warn("feed parse failed", "module", "service", "action", "parse", "resource", "feed", "result", "failed", "feed", feed.Name, "error", err)
		return []model.Entry{}, fmt.Errorf("%w: %s: %v", ErrFeedFetch, feed.Name, err)
	}

	entries := make([]model.Entry, 0, len(parsed.Items))
	skipped := 0
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entry, ok := s.normalizer.Normalize(NewGofeedItem(item), feed.Name, feed.Tags)
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}

	logger.Debug("feed parsed", "module", "service", "action", "parse", "resource", "feed", "result", "ok", "feed", feed.Name, "entries", len(entries), "skipped", skipped)
	return entries, nil
}

func (s *IngestService) download(ctx context.Context, feedURL string) ([]byte, error) {
	body, err := s.downloadHTTP(ctx, feedURL)
	if errors.Is(err, errForbidden) && s.opts.BrowserFallback {
		logger.Info("feed fetch retry with browser session", "module", "service", "action", "fetch", "resource", "feed", "result", "retry", "url", feedURL)
		return s.browser(ctx, feedURL)
	}
	return body, err
}

func (s *IngestService) downloadHTTP(ctx context.Context, feedURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := s.clients.NewHTTPClient(s.opts.Timeout).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, errForbidden
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
}

func (s *IngestService) downloadBrowser(ctx context.Context, feedURL string) ([]byte, error) {
	session := s.clients.NewAzureSession(ctx, s.opts.Timeout)
	defer session.Close()

	headers := azuretls.OrderedHeaders{
		{"accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,*/*;q=0.5"},
		{"accept-language", "en-US,en;q=0.9"},
		{"sec-ch-ua", config.ChromeSecChUa},
		{"sec-ch-ua-mobile", "?0"},
		{"sec-ch-ua-platform", `"Windows"`},
		{"sec-fetch-dest", "document"},
		{"sec-fetch-mode", "navigate"},
		{"sec-fetch-site", "none"},
		{"user-agent", config.ChromeUserAgent},
	}

	resp, err := session.Do(&azuretls.Request{
		Method:         http.MethodGet,
		Url:            feedURL,
		OrderedHeaders: headers,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP %d (browser session)", resp.StatusCode)
	}
	return resp.Body, nil
}

func parseFeed(body []byte) (*gofeed.Feed, error) {
	return gofeed.NewParser().Parse(bytes.NewReader(body))
}

// stripInvalidXMLChars drops characters outside the XML 1.0 Char production.
func stripInvalidXMLChars(body []byte) []byte {
	return []byte(strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		default:
			return -1
		}
	}, string(body)))
}
