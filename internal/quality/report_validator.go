package quality

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mediascope/researcher/internal/domain"
)

var ErrReportRejected = errors.New("report failed quality checks")

const (
	minReportScore = 0.50

	maxSummaryLen     = 2400
	maxFindingLen     = 400
	maxPerspectiveLen = 1800
	maxFindings       = 12
	maxTags           = 10
)

var allowedSentiments = map[string]struct{}{
	"positive": {},
	"negative": {},
	"neutral":  {},
	"mixed":    {},
}

// ReportValidator normalizes a compiled report and scores its completeness.
// Reports that survive come back cleaned; structurally hopeless ones are
// rejected so callers can fall back to a minimal report.
type ReportValidator struct{}

func NewReportValidator() *ReportValidator {
	return &ReportValidator{}
}

// ValidateReport returns the normalized report and its quality score, or
// ErrReportRejected when the report is unusable.
func (v *ReportValidator) ValidateReport(report *domain.CompiledReport) (*domain.CompiledReport, float64, error) {
	if report == nil {
		return nil, 0, fmt.Errorf("%w: missing report", ErrReportRejected)
	}

	penalty := 0.0

	summary := normalizeText(report.Summary)
	if summary == "" {
		return nil, 0, fmt.Errorf("%w: summary is empty", ErrReportRejected)
	}
	if len(summary) > maxSummaryLen {
		summary = truncateAtWord(summary, maxSummaryLen)
		penalty += 0.06
	}
	if len(summary) < 40 {
		penalty += 0.12
	}

	findings := make([]string, 0, len(report.KeyFindings))
	seen := make(map[string]struct{}, len(report.KeyFindings))
	for _, finding := range report.KeyFindings {
		normalized := normalizeText(finding)
		if normalized == "" {
			penalty += 0.03
			continue
		}
		if len(normalized) > maxFindingLen {
			normalized = truncateAtWord(normalized, maxFindingLen)
			penalty += 0.02
		}
		key := strings.ToLower(normalized)
		if _, exists := seen[key]; exists {
			penalty += 0.03
			continue
		}
		seen[key] = struct{}{}
		findings = append(findings, normalized)
		if len(findings) == maxFindings {
			break
		}
	}
	if len(findings) == 0 {
		penalty += 0.10
	}

	perspectives := make(map[string]string, len(report.RegionalPerspectives))
	for region, text := range report.RegionalPerspectives {
		normalized := normalizeText(text)
		if strings.TrimSpace(region) == "" || normalized == "" {
			continue
		}
		if len(normalized) > maxPerspectiveLen {
			normalized = truncateAtWord(normalized, maxPerspectiveLen)
			penalty += 0.02
		}
		perspectives[strings.TrimSpace(region)] = normalized
	}
	if len(perspectives) == 0 {
		perspectives = nil
	}

	tags := make([]string, 0, len(report.Tags))
	seenTags := make(map[string]struct{}, len(report.Tags))
	for _, tag := range report.Tags {
		normalized := strings.ToLower(normalizeText(tag))
		if normalized == "" {
			continue
		}
		if _, exists := seenTags[normalized]; exists {
			continue
		}
		seenTags[normalized] = struct{}{}
		tags = append(tags, normalized)
		if len(tags) == maxTags {
			break
		}
	}

	sentiment := strings.ToLower(normalizeText(report.Sentiment))
	if _, allowed := allowedSentiments[sentiment]; !allowed {
		if sentiment != "" {
			penalty += 0.02
		}
		sentiment = "neutral"
	}

	rankings := make([]domain.ArticleRanking, 0, len(report.TopArticles))
	seenIDs := make(map[int64]struct{}, len(report.TopArticles))
	for _, ranking := range report.TopArticles {
		if ranking.ArticleID <= 0 {
			penalty += 0.02
			continue
		}
		if _, exists := seenIDs[ranking.ArticleID]; exists {
			continue
		}
		seenIDs[ranking.ArticleID] = struct{}{}
		ranking.RelevanceReason = normalizeText(ranking.RelevanceReason)
		rankings = append(rankings, ranking)
	}

	sources := make([]domain.WebSourceReference, 0, len(report.WebSources))
	seenURLs := make(map[string]struct{}, len(report.WebSources))
	for _, source := range report.WebSources {
		url := strings.TrimSpace(source.URL)
		if url == "" {
			continue
		}
		if _, exists := seenURLs[url]; exists {
			continue
		}
		seenURLs[url] = struct{}{}
		source.URL = url
		source.Title = normalizeText(source.Title)
		source.RelevanceReason = normalizeText(source.RelevanceReason)
		sources = append(sources, source)
	}

	score := clamp01(1.0 - penalty)
	if score < minReportScore {
		return nil, 0, fmt.Errorf("%w: low report quality score %.2f", ErrReportRejected, score)
	}

	return &domain.CompiledReport{
		Summary:              summary,
		KeyFindings:          findings,
		RegionalPerspectives: perspectives,
		Tags:                 tags,
		Sentiment:            sentiment,
		TopArticles:          rankings,
		WebSources:           sources,
	}, round2(score), nil
}

func normalizeText(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	parts := strings.Fields(trimmed)
	return strings.Join(parts, " ")
}

func truncateAtWord(value string, maxLen int) string {
	if len(value) <= maxLen || maxLen <= 0 {
		return value
	}
	cut := value[:maxLen]
	lastSpace := strings.LastIndex(cut, " ")
	if lastSpace > maxLen/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(cut)
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
