package domain

// ArticleRanking is the compiler's relevance vote for one corpus article.
type ArticleRanking struct {
	ArticleID       int64  `json:"article_id"`
	RelevanceReason string `json:"relevance_reason"`
}

// WebSourceReference is the compiler's relevance vote for one web source.
type WebSourceReference struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	RelevanceReason string `json:"relevance_reason,omitempty"`
}

// CompiledReport is the final structured research output.
type CompiledReport struct {
	Summary              string               `json:"summary"`
	KeyFindings          []string             `json:"key_findings"`
	RegionalPerspectives map[string]string    `json:"regional_perspectives,omitempty"`
	Tags                 []string             `json:"tags,omitempty"`
	Sentiment            string               `json:"sentiment,omitempty"`
	TopArticles          []ArticleRanking     `json:"top_articles,omitempty"`
	WebSources           []WebSourceReference `json:"web_sources,omitempty"`
}

// RankedArticle is a full article record paired with the reason the
// compiler ranked it. Padded entries carry an empty reason.
type RankedArticle struct {
	Article         ArticleRecord `json:"article"`
	RelevanceReason string        `json:"relevance_reason"`
}
