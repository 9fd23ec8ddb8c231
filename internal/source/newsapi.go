package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
)

// NewsAPIClient implements Source against an Event Registry style
// minute-stream article search API, queried per city with an API key.
type NewsAPIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNewsAPIClient creates a news API client.
func NewNewsAPIClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *NewsAPIClient {
	return &NewsAPIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch queries the API for articles tagged with the city's location URI and
// published within the lookback window ending now.
func (c *NewsAPIClient) Fetch(ctx context.Context, city domain.CityID, since time.Time) ([]domain.RawArticle, error) {
	minsAgo := int(time.Since(since).Minutes())
	if minsAgo < 1 {
		minsAgo = 1
	}

	query, err := json.Marshal(map[string]any{
		"$query": map[string]any{
			"$and": []map[string]any{
				{"locationUri": locationURI(city)},
				{"lang": "eng"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	params := url.Values{
		"query": {string(query)},
		"recentActivityArticlesMaxArticleCount":     {"100"},
		"recentActivityArticlesUpdatesAfterMinsAgo": {strconv.Itoa(minsAgo)},
		"apiKey": {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrSourceUnavailable, city, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: fetch %s", ErrRateLimited, city)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: fetch %s: status %d: %s", ErrSourceUnavailable, city, resp.StatusCode, body)
	}

	var apiResp newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response for %s: %v", ErrSourceUnavailable, city, err)
	}

	activity := apiResp.RecentActivityArticles.Activity
	c.logger.Debug("news api fetch", "city", city, "articles", len(activity))

	raws := make([]domain.RawArticle, 0, len(activity))
	for _, art := range activity {
		raws = append(raws, domain.RawArticle{
			Title:        art.Title,
			Description:  art.Body,
			Location:     art.Location.Label.Eng,
			Source:       art.Source.Title,
			SourceWeight: rankWeight(art.Source.Ranking.ImportanceRank),
			ImageURL:     art.Image,
			URL:          art.URL,
			PublishedAt:  parseArticleTime(art.DateTimePub, art.DateTime),
		})
	}
	return raws, nil
}

// locationURI maps a canonical city name to the wiki-style location URI the
// API indexes by, e.g. "New York City" -> ".../wiki/New_York_City".
func locationURI(city domain.CityID) string {
	return "http://en.wikipedia.org/wiki/" + strings.ReplaceAll(city, " ", "_")
}

// rankWeight converts the provider's source importance rank (1 is best) to a
// scoring weight in [1, 3]. Top-ranked outlets count roughly triple; unranked
// sources fall back to 1.
func rankWeight(rank int) float64 {
	if rank <= 0 {
		return 1
	}
	w := 4 - math.Log10(float64(rank))
	return math.Min(3, math.Max(1, w))
}

// parseArticleTime takes the first parseable of the publish and index
// timestamps, zero when both are absent (ingestion time is applied later).
func parseArticleTime(candidates ...string) time.Time {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// News API response types.

type newsAPIResponse struct {
	RecentActivityArticles struct {
		Activity []newsAPIArticle `json:"activity"`
	} `json:"recentActivityArticles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Image       string `json:"image"`
	URL         string `json:"url"`
	DateTime    string `json:"dateTime"`
	DateTimePub string `json:"dateTimePub"`
	Location    struct {
		Label struct {
			Eng string `json:"eng"`
		} `json:"label"`
	} `json:"location"`
	Source struct {
		Title   string `json:"title"`
		Ranking struct {
			ImportanceRank int `json:"importanceRank"`
		} `json:"ranking"`
	} `json:"source"`
}
