package queries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/config"
)

const trendsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:ht="https://trends.google.com/trending/rss">
  <channel>
    <title>Daily Search Trends</title>
    <item>
      <title>solar eclipse</title>
      <ht:news_item>
        <ht:news_item_title>Solar eclipse visible across the region today</ht:news_item_title>
      </ht:news_item>
      <ht:news_item>
        <ht:news_item_title>How to watch the eclipse safely</ht:news_item_title>
      </ht:news_item>
      <ht:news_item>
        <ht:news_item_title>Eclipse timings city by city</ht:news_item_title>
      </ht:news_item>
      <ht:news_item>
        <ht:news_item_title>Fourth headline beyond the follow-up cap</ht:news_item_title>
      </ht:news_item>
    </item>
    <item>
      <title>  transfer deadline day  </title>
    </item>
    <item>
      <title></title>
    </item>
  </channel>
</rss>`

func sourcesConfig(url string) config.SourcesConfig {
	return config.SourcesConfig{
		GeoLocation:    "US",
		Language:       "en",
		TrendsURL:      url,
		NewsURL:        url,
		FetchTimeoutMs: 2000,
	}
}

func TestTrendingSourceParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request carried no user agent")
		}
		w.Write([]byte(trendsRSS))
	}))
	defer srv.Close()

	src := NewTrendingSource(sourcesConfig(srv.URL), 0.4)
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("queries = %d, want 2 (empty title dropped)", len(got))
	}
	if got[0].Text != "solar eclipse" {
		t.Errorf("first topic = %q", got[0].Text)
	}
	if len(got[0].FollowUps) != 3 {
		t.Errorf("follow-ups = %d, want capped at 3", len(got[0].FollowUps))
	}
	if got[0].FollowUps[0] != "Solar eclipse visible across the region today" {
		t.Errorf("first follow-up = %q", got[0].FollowUps[0])
	}
	if got[1].Text != "transfer deadline day" {
		t.Errorf("second topic = %q, want trimmed title", got[1].Text)
	}
}

func TestTrendingSourceTemplatesGeo(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RawQuery
		w.Write([]byte(trendsRSS))
	}))
	defer srv.Close()

	cfg := sourcesConfig(srv.URL + "/rss?geo=%s")
	cfg.GeoLocation = "JP"
	if _, err := NewTrendingSource(cfg, 0.4).Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "geo=JP" {
		t.Errorf("query = %q, want geo templated in", gotPath)
	}
}

func TestTrendingSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewTrendingSource(sourcesConfig(srv.URL), 0.4).Fetch(context.Background()); err == nil {
		t.Fatal("expected error on HTTP 503")
	}
}

func TestNewsSourceScrapesHeadlines(t *testing.T) {
	page := `<html><body>
	  <a href="/a">Council approves new riverside cycling path</a>
	  <h2>Storm season arrives two weeks early this year</h2>
	  <a href="/b">ok</a>
	  <a href="/c">Council approves new riverside cycling path</a>
	  <h3>Local team clinches the regional championship title</h3>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	got, err := NewNewsSource(sourcesConfig(srv.URL), 0.25).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("headlines = %d, want 3 (short anchor and duplicate dropped)", len(got))
	}
	if got[0].Text != "Council approves new riverside cycling path" {
		t.Errorf("first headline = %q", got[0].Text)
	}
}

func TestNewsSourceEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>nothing anchor-like here that is long</p></body></html>"))
	}))
	defer srv.Close()

	if _, err := NewNewsSource(sourcesConfig(srv.URL), 0.25).Fetch(context.Background()); err == nil {
		t.Fatal("expected error when no headlines were found")
	}
}

func TestStaticSourceCannotFail(t *testing.T) {
	src := NewStaticSource("common", 0.2, CommonTopics("en"))
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("static fetch: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("static source returned nothing")
	}

	// Mutating the returned slice must not leak into later fetches.
	got[0].Text = "clobbered"
	again, _ := src.Fetch(context.Background())
	if again[0].Text == "clobbered" {
		t.Error("static source handed out its backing slice")
	}
}

func TestTopicsPerLanguage(t *testing.T) {
	if len(CommonTopics("en")) == 0 || len(CommonTopics("ja")) == 0 {
		t.Fatal("common topics missing for a supported language")
	}
	if CommonTopics("en")[0].Text == CommonTopics("ja")[0].Text {
		t.Error("language variants look identical")
	}
	if len(TechEntertainmentTopics("en")) == 0 || len(TechEntertainmentTopics("ja")) == 0 {
		t.Fatal("tech/entertainment topics missing for a supported language")
	}
}

func TestBuildSourcesMix(t *testing.T) {
	sources := BuildSources(sourcesConfig("http://localhost"))
	if len(sources) != 4 {
		t.Fatalf("sources = %d, want the four-tier mix", len(sources))
	}
	wantWeights := []float64{0.40, 0.25, 0.20, 0.15}
	for i, s := range sources {
		if s.Weight() != wantWeights[i] {
			t.Errorf("source %s weight = %v, want %v", s.Name(), s.Weight(), wantWeights[i])
		}
	}
}
