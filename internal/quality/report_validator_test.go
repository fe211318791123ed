package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediascope/researcher/internal/domain"
)

func TestValidateReportNormalizes(t *testing.T) {
	validator := NewReportValidator()

	clean, score, err := validator.ValidateReport(&domain.CompiledReport{
		Summary:     "  Solar adoption   is accelerating across several markets this year.  ",
		KeyFindings: []string{"Capacity doubled", "  capacity DOUBLED  ", ""},
		Tags:        []string{"Energy", "energy", "Solar"},
		Sentiment:   "POSITIVE",
		TopArticles: []domain.ArticleRanking{
			{ArticleID: 2, RelevanceReason: " core coverage "},
			{ArticleID: 2, RelevanceReason: "dup"},
			{ArticleID: 0},
		},
		WebSources: []domain.WebSourceReference{
			{URL: " https://example.com/a ", Title: "A"},
			{URL: ""},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Solar adoption is accelerating across several markets this year.", clean.Summary)
	assert.Equal(t, []string{"Capacity doubled"}, clean.KeyFindings)
	assert.Equal(t, []string{"energy", "solar"}, clean.Tags)
	assert.Equal(t, "positive", clean.Sentiment)
	require.Len(t, clean.TopArticles, 1)
	assert.Equal(t, "core coverage", clean.TopArticles[0].RelevanceReason)
	require.Len(t, clean.WebSources, 1)
	assert.Equal(t, "https://example.com/a", clean.WebSources[0].URL)
	assert.Greater(t, score, 0.5)
}

func TestValidateReportRejectsEmptySummary(t *testing.T) {
	validator := NewReportValidator()

	_, _, err := validator.ValidateReport(&domain.CompiledReport{Summary: "   "})
	require.ErrorIs(t, err, ErrReportRejected)

	_, _, err = validator.ValidateReport(nil)
	require.ErrorIs(t, err, ErrReportRejected)
}

func TestValidateReportUnknownSentimentDefaultsNeutral(t *testing.T) {
	validator := NewReportValidator()

	clean, _, err := validator.ValidateReport(&domain.CompiledReport{
		Summary:     "A sufficiently long summary describing the research outcome in detail.",
		KeyFindings: []string{"One finding"},
		Sentiment:   "jubilant",
	})
	require.NoError(t, err)
	assert.Equal(t, "neutral", clean.Sentiment)
}

func TestValidateReportTruncatesLongSummaryAtWord(t *testing.T) {
	validator := NewReportValidator()

	clean, _, err := validator.ValidateReport(&domain.CompiledReport{
		Summary:     strings.Repeat("growth across markets ", 200),
		KeyFindings: []string{"One finding"},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(clean.Summary), maxSummaryLen)
	assert.NotEqual(t, " ", clean.Summary[len(clean.Summary)-1:])
}
