package queries

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/config"
)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxFollowUps bounds related terms carried per trending topic.
const maxFollowUps = 3

// TrendingSource pulls the daily trending topics RSS feed for a geography.
// Related news item titles become the query's follow-up terms.
type TrendingSource struct {
	cfg    config.SourcesConfig
	client *http.Client
	weight float64
}

// NewTrendingSource builds the trending source with its mix share.
func NewTrendingSource(cfg config.SourcesConfig, weight float64) *TrendingSource {
	return &TrendingSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout()},
		weight: weight,
	}
}

func (s *TrendingSource) Name() string    { return "trending" }
func (s *TrendingSource) Weight() float64 { return s.weight }

// trendsFeed maps the subset of the RSS payload we read. The feed nests
// related headlines under each item in an ht: namespace.
type trendsFeed struct {
	Items []struct {
		Title     string `xml:"title"`
		NewsItems []struct {
			Title string `xml:"news_item_title"`
		} `xml:"news_item"`
	} `xml:"channel>item"`
}

func (s *TrendingSource) Fetch(ctx context.Context) ([]Query, error) {
	url := s.cfg.TrendsURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, s.cfg.GeoLocation)
	}

	body, err := fetchRaw(ctx, s.client, url)
	if err != nil {
		return nil, fmt.Errorf("trending fetch: %w", err)
	}

	var feed trendsFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("trending parse: %w", err)
	}

	queries := make([]Query, 0, len(feed.Items))
	for _, item := range feed.Items {
		text := strings.TrimSpace(item.Title)
		if text == "" {
			continue
		}
		q := Query{Text: text}
		for _, ni := range item.NewsItems {
			t := strings.TrimSpace(ni.Title)
			if t == "" || t == text {
				continue
			}
			q.FollowUps = append(q.FollowUps, t)
			if len(q.FollowUps) >= maxFollowUps {
				break
			}
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("trending feed empty")
	}
	return queries, nil
}

// NewsSource scrapes headline anchors from a news landing page. Headlines
// make good news-style queries without needing an API key.
type NewsSource struct {
	cfg    config.SourcesConfig
	client *http.Client
	weight float64
}

// NewNewsSource builds the news source with its mix share.
func NewNewsSource(cfg config.SourcesConfig, weight float64) *NewsSource {
	return &NewsSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout()},
		weight: weight,
	}
}

func (s *NewsSource) Name() string    { return "news" }
func (s *NewsSource) Weight() float64 { return s.weight }

func (s *NewsSource) Fetch(ctx context.Context) ([]Query, error) {
	body, err := fetchRaw(ctx, s.client, s.cfg.NewsURL)
	if err != nil {
		return nil, fmt.Errorf("news fetch: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("news parse: %w", err)
	}

	headlines := extractHeadlines(doc, 40)
	if len(headlines) == 0 {
		return nil, fmt.Errorf("no headlines found")
	}

	queries := make([]Query, 0, len(headlines))
	for _, h := range headlines {
		queries = append(queries, Query{Text: h})
	}
	return queries, nil
}

// extractHeadlines walks the tree collecting anchor texts that look like
// headlines: long enough to be a sentence fragment, short enough to be a
// search term.
func extractHeadlines(doc *html.Node, limit int) []string {
	var out []string
	seen := make(map[string]struct{})

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "a" || n.Data == "h2" || n.Data == "h3") {
			text := strings.Join(strings.Fields(nodeText(n)), " ")
			if len(text) >= 15 && len(text) <= 90 {
				if _, dup := seen[text]; !dup {
					seen[text] = struct{}{}
					out = append(out, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.TrimSpace(sb.String())
}

// BuildSources assembles the standard four-tier mix: trending 40%, news 25%,
// common 20%, tech/entertainment 15%. Order matters: a failed tier's share
// falls through to the next one, ending at the static tiers which cannot fail.
func BuildSources(cfg config.SourcesConfig) []WeightedSource {
	return []WeightedSource{
		NewTrendingSource(cfg, 0.40),
		NewNewsSource(cfg, 0.25),
		NewStaticSource("common", 0.20, CommonTopics(cfg.Language)),
		NewStaticSource("tech_entertainment", 0.15, TechEntertainmentTopics(cfg.Language)),
	}
}

// fetchRaw performs one bounded GET with a browser-like user agent.
func fetchRaw(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
}
