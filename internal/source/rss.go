package source

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
)

// DefaultFeeds is the built-in world-news feed list used when RSS_FEEDS is
// not set.
var DefaultFeeds = []string{
	"https://feeds.bbci.co.uk/news/world/rss.xml",
	"https://feeds.nbcnews.com/nbcnews/public/news",
	"https://abcnews.go.com/abcnews/internationalheadlines",
	"https://www.aljazeera.com/xml/rss/all.xml",
	"https://www.cbsnews.com/latest/rss/world",
	"https://www.france24.com/en/rss",
	"https://feeds.washingtonpost.com/rss/world",
	"https://globalnews.ca/world/feed/",
	"https://feeds.npr.org/1004/rss.xml",
	"https://www.smh.com.au/rss/world.xml",
	"https://feeds.skynews.com/feeds/rss/world.xml",
	"https://timesofindia.indiatimes.com/rssfeeds/296589292.cms",
	"https://feeds.feedburner.com/ndtvnews-world-news",
}

const summaryMaxLen = 500

// RSSSweeper implements Sweeper over a set of world-news feeds. Feeds carry
// no city scoping; the extractor attributes each item from its free text.
// Fetches run in parallel but at most one in flight per feed host, so a
// publisher serving several feeds is not hammered.
type RSSSweeper struct {
	feeds      []string
	parser     *gofeed.Parser
	logger     *slog.Logger
	perDomain  map[string]chan struct{}
	domainLock sync.Mutex
}

// NewRSSSweeper creates a sweeper over the given feed URLs, or DefaultFeeds
// when the list is empty.
func NewRSSSweeper(feeds []string, timeout time.Duration, logger *slog.Logger) *RSSSweeper {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "worldonfire-backend/1.0"
	parser.Client = newFeedHTTPClient(timeout)

	return &RSSSweeper{
		feeds:     feeds,
		parser:    parser,
		logger:    logger,
		perDomain: make(map[string]chan struct{}),
	}
}

// FetchAll parses every configured feed and returns the combined items. A
// feed that fails to parse is logged and skipped; an empty result is not an
// error.
func (s *RSSSweeper) FetchAll(ctx context.Context) ([]domain.RawArticle, error) {
	var (
		mu  sync.Mutex
		out []domain.RawArticle
		wg  sync.WaitGroup
	)

	for _, feedURL := range s.feeds {
		wg.Add(1)
		go func(feedURL string) {
			defer wg.Done()

			release := s.acquireDomain(feedURL)
			defer release()

			items, err := s.fetchFeed(ctx, feedURL)
			if err != nil {
				s.logger.Warn("feed fetch failed", "feed", feedURL, "error", err)
				return
			}
			mu.Lock()
			out = append(out, items...)
			mu.Unlock()
		}(feedURL)
	}
	wg.Wait()

	return out, ctx.Err()
}

func (s *RSSSweeper) fetchFeed(ctx context.Context, feedURL string) ([]domain.RawArticle, error) {
	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	sourceName := feed.Title
	items := make([]domain.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}
		items = append(items, domain.RawArticle{
			Title:       item.Title,
			Description: truncate(stripHTML(item.Description), summaryMaxLen),
			Source:      sourceName,
			URL:         item.Link,
			PublishedAt: published,
		})
	}
	return items, nil
}

// acquireDomain blocks until this feed's host slot is free and returns the
// release func.
func (s *RSSSweeper) acquireDomain(feedURL string) func() {
	host := feedURL
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		host = u.Host
	}

	s.domainLock.Lock()
	slot, ok := s.perDomain[host]
	if !ok {
		slot = make(chan struct{}, 1)
		s.perDomain[host] = slot
	}
	s.domainLock.Unlock()

	slot <- struct{}{}
	return func() { <-slot }
}

// stripHTML reduces a feed summary to its text content. Feed descriptions
// routinely embed markup and tracking images.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}

func newFeedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	// Do not split a multi-byte rune.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
