package research

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/mediascope/researcher/internal/domain"
)

const (
	planDigestArticles    = 10
	planDigestWebPages    = 5
	decideDigestArticles  = 40
	decideDigestWebPages  = 10
	compileDigestArticles = 50
	compileDigestWebPages = 10
)

var planPrompt = template.Must(template.New("plan").Parse(`You are a research assistant for a media intelligence platform.
Today's date: {{.Today}}

The user asked: "{{.Query}}"

Filters: {{.Filters}}
Iteration: {{.Iteration}}/{{.MaxIterations}}
Corpus articles found so far: {{.FoundCount}}
Web results found so far: {{.WebCount}}
Queries already tried: {{.Tried}}

{{if .Summaries}}Summaries of corpus articles found so far:
{{.Summaries}}{{else}}No corpus articles found yet.{{end}}
{{- if .WebSummaries}}

Web source summaries:
{{.WebSummaries}}{{end}}
{{- if .WebAvailable}}

You also have access to WEB SEARCH. Use web searches when:
- The query asks about recent events or "today" / "this week" / current developments
- Few or no articles were found in the corpus
- Broader context would help (background, international reactions, etc.)

Include web searches in your plan as "web_searches" - each with a "query" and optional "language" (default "en").
{{- end}}

Generate 1-3 CORPUS search queries to find relevant articles. Use different angles and phrasings.
Each query should specify a search mode: "keyword", "semantic", or "hybrid".
Prefer "hybrid" for broad queries and "keyword" for specific terms.

Respond with ONLY a JSON object (no markdown):
{"db_searches": [{"query": "...", "mode": "hybrid", "region": null}], {{if .WebAvailable}}"web_searches": [{"query": "...", "language": "en"}], {{end}}"reasoning": "..."}
`))

var decidePrompt = template.Must(template.New("decide").Parse(`You are a research assistant analyzing articles about: "{{.Query}}"
Today's date: {{.Today}}

Iteration {{.Iteration}}/{{.MaxIterations}}. Corpus articles reviewed: {{.ArticleCount}}. Web pages read: {{.WebCount}}.
Queries tried: {{.Tried}}

Article summaries:
{{.Summaries}}
{{- if .WebSummaries}}

Web source summaries:
{{.WebSummaries}}{{end}}

Decide whether to:
1. "expand" - search for more articles with new angles (if important aspects are missing)
2. "compile" - enough information gathered, produce the final report

{{if .LastIteration}}You MUST choose 'compile' as this is the last iteration.{{end}}
{{- if .EnoughSources}}Consider compiling - you have a good number of sources.{{end}}

Respond with ONLY a JSON object (no markdown):
{"action": "expand" or "compile", "reasoning": "...", "new_angles": ["query1", "query2"]}
`))

var compilePrompt = template.Must(template.New("compile").Parse(`You are a research analyst producing a comprehensive report about: "{{.Query}}"
Today's date: {{.Today}}

Based on {{.ArticleCount}} corpus articles and {{.WebCount}} web sources, produce a structured report.

Article data:
{{.Summaries}}
{{- if .WebSummaries}}

Web sources:
{{.WebSummaries}}{{end}}

Produce a JSON report with:
- "summary": A comprehensive 2-4 paragraph overview synthesizing key themes across all sources
- "key_findings": Array of 3-7 bullet-point findings (strings)
- "regional_perspectives": Object mapping region codes to 1-2 sentence perspectives (e.g. {"jp": "...", "us": "..."})
- "tags": Array of relevant topic tags
- "sentiment": Overall sentiment ("positive", "negative", "neutral", "mixed")
- "top_articles": Array of the 10-15 most relevant corpus articles, each with {"article_id": int, "relevance_reason": "why this article matters"}
{{- if .HasWebSources}}
- "web_sources": Array of relevant web sources, each with {"url": "...", "title": "...", "relevance_reason": "why this source matters"}
{{- end}}

Respond with ONLY a JSON object (no markdown):
`))

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return out.String(), nil
}

// summariesInOrder returns held article summaries in discovery order.
func summariesInOrder(state *State, limit int) []domain.ArticleRecord {
	records := make([]domain.ArticleRecord, 0, limit)
	for _, id := range state.FoundIDs {
		record, held := state.Summaries[id]
		if !held {
			continue
		}
		records = append(records, record)
		if len(records) >= limit {
			break
		}
	}
	return records
}

// readPagesInOrder returns successfully read web pages in discovery order.
func readPagesInOrder(state *State, limit int) []domain.WebPageRecord {
	pages := make([]domain.WebPageRecord, 0, limit)
	for _, result := range state.WebResults {
		page, held := state.WebPages[result.URL]
		if !held || !page.Success {
			continue
		}
		pages = append(pages, page)
		if len(pages) >= limit {
			break
		}
	}
	return pages
}

func planArticleDigest(state *State) string {
	var lines []string
	for _, record := range summariesInOrder(state, planDigestArticles) {
		summary := record.Summary
		if summary == "" {
			summary = "no summary"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", orUnknown(record.Region), orUnknown(record.Title()), summary))
	}
	return strings.Join(lines, "\n")
}

func planWebDigest(state *State) string {
	var lines []string
	for _, page := range readPagesInOrder(state, planDigestWebPages) {
		lines = append(lines, fmt.Sprintf("- [WEB] %s: %s", orUnknown(page.Title), truncate(page.Summary, 100)))
	}
	return strings.Join(lines, "\n")
}

func decideArticleDigest(state *State) string {
	var lines []string
	for _, record := range summariesInOrder(state, decideDigestArticles) {
		lines = append(lines, fmt.Sprintf(
			"[ID:%d] [%s] %s\n  TLDR: %s\n  Tags: %s\n  Sentiment: %s",
			record.ID,
			orUnknown(record.Region),
			orUnknown(record.Title()),
			orNA(record.Summary),
			jsonList(record.Tags),
			orUnknown(record.Sentiment),
		))
	}
	return strings.Join(lines, "\n")
}

func decideWebDigest(state *State) string {
	var lines []string
	for _, page := range readPagesInOrder(state, decideDigestWebPages) {
		lines = append(lines, fmt.Sprintf(
			"[WEB: %s] %s\n  Summary: %s",
			page.URL, orUnknown(page.Title), orNA(page.Summary),
		))
	}
	return strings.Join(lines, "\n")
}

func compileArticleDigest(state *State) string {
	var lines []string
	for _, record := range summariesInOrder(state, compileDigestArticles) {
		published := "?"
		if !record.PublishedAt.IsZero() {
			published = record.PublishedAt.Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf(
			"[ID:%d] [%s] %s\n  TLDR: %s\n  Tags: %s\n  Sentiment: %s\n  Source: %s\n  Published: %s",
			record.ID,
			orUnknown(record.Region),
			orUnknown(record.Title()),
			orNA(record.Summary),
			jsonList(record.Tags),
			orUnknown(record.Sentiment),
			orUnknown(record.SourceName),
			published,
		))
	}
	return strings.Join(lines, "\n")
}

func compileWebDigest(state *State) string {
	var lines []string
	for _, page := range readPagesInOrder(state, compileDigestWebPages) {
		lines = append(lines, fmt.Sprintf(
			"[WEB: %s] %s\n  Summary: %s\n  Key points: %s",
			page.URL, orUnknown(page.Title), orNA(page.Summary), jsonList(page.KeyPoints),
		))
	}
	return strings.Join(lines, "\n")
}

func jsonStrings(values []string) string {
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func jsonList(values []string) string {
	if values == nil {
		values = []string{}
	}
	return jsonStrings(values)
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "?"
	}
	return value
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}

// truncate bounds value to max characters, never splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
