package queries

import "context"

// StaticSource serves a fixed topic list. It backs the common-topic and
// tech/entertainment tiers and doubles as the last-resort fallback when the
// network sources are down: a static fetch cannot fail.
type StaticSource struct {
	name   string
	weight float64
	topics []Query
}

// NewStaticSource wraps a fixed list of queries as a source.
func NewStaticSource(name string, weight float64, topics []Query) *StaticSource {
	return &StaticSource{name: name, weight: weight, topics: topics}
}

func (s *StaticSource) Name() string    { return s.name }
func (s *StaticSource) Weight() float64 { return s.weight }

func (s *StaticSource) Fetch(ctx context.Context) ([]Query, error) {
	out := make([]Query, len(s.topics))
	copy(out, s.topics)
	return out, nil
}

// CommonTopics returns everyday search subjects for a language.
func CommonTopics(lang string) []Query {
	if lang == "ja" {
		return []Query{
			{Text: "今日の天気", FollowUps: []string{"週間天気予報", "明日の天気"}},
			{Text: "簡単レシピ", FollowUps: []string{"夕飯 レシピ 人気", "お弁当 おかず"}},
			{Text: "近くのカフェ", FollowUps: []string{"カフェ おすすめ"}},
			{Text: "電車 乗り換え案内"},
			{Text: "今日のニュース", FollowUps: []string{"経済ニュース 最新"}},
			{Text: "健康 ストレッチ 方法"},
			{Text: "映画 上映中", FollowUps: []string{"映画 ランキング"}},
			{Text: "株価 日経平均"},
			{Text: "旅行 おすすめ 国内", FollowUps: []string{"温泉 ランキング"}},
			{Text: "英語 勉強法"},
		}
	}
	return []Query{
		{Text: "weather forecast this week", FollowUps: []string{"weather tomorrow", "weekend weather"}},
		{Text: "easy dinner recipes", FollowUps: []string{"healthy meal prep ideas", "quick lunch recipes"}},
		{Text: "coffee shops near me", FollowUps: []string{"best coffee beans"}},
		{Text: "how to improve sleep quality"},
		{Text: "top news today", FollowUps: []string{"world news headlines"}},
		{Text: "stretching exercises for back pain"},
		{Text: "movies in theaters now", FollowUps: []string{"top rated movies this year"}},
		{Text: "stock market today"},
		{Text: "best travel destinations", FollowUps: []string{"cheap flights deals"}},
		{Text: "learn a new language tips"},
	}
}

// TechEntertainmentTopics returns the tech and entertainment tier.
func TechEntertainmentTopics(lang string) []Query {
	if lang == "ja" {
		return []Query{
			{Text: "新作ゲーム 発売日", FollowUps: []string{"ゲーム レビュー"}},
			{Text: "スマホ 最新機種 比較"},
			{Text: "アニメ 今期 おすすめ", FollowUps: []string{"アニメ ランキング"}},
			{Text: "AI 最新技術"},
			{Text: "プログラミング 入門"},
			{Text: "音楽 ランキング 最新", FollowUps: []string{"ライブ チケット"}},
			{Text: "ドラマ 視聴率"},
			{Text: "ノートパソコン おすすめ"},
		}
	}
	return []Query{
		{Text: "new video game releases", FollowUps: []string{"game reviews this month"}},
		{Text: "best smartphones compared"},
		{Text: "new streaming series to watch", FollowUps: []string{"tv show ratings"}},
		{Text: "latest AI technology news"},
		{Text: "learn programming for beginners"},
		{Text: "top music charts", FollowUps: []string{"concert tickets near me"}},
		{Text: "upcoming movie trailers"},
		{Text: "best laptops for work"},
	}
}
