package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediascope/researcher/internal/ai"
	"github.com/mediascope/researcher/internal/cache"
	"github.com/mediascope/researcher/internal/domain"
)

// tsvectorExpr matches the expression indexed on the articles table.
const tsvectorExpr = `to_tsvector('english',
	COALESCE(a.translated_title, '') || ' ' ||
	COALESCE(a.translated_content, '') || ' ' ||
	COALESCE(a.summary_tldr, ''))`

const articleColumns = `a.id, a.original_title, a.translated_title, a.published_at,
	a.summary_tldr, a.summary_bullets, a.summary_tags, a.summary_sentiment,
	a.original_url, f.source_name, f.region_id`

// SearchParams narrows one corpus search.
type SearchParams struct {
	Limit      int
	Region     string
	DateFrom   string
	DateTo     string
	ExcludeIDs []int64
}

type StoreConfig struct {
	Embedder        ai.Embedder
	EmbedCache      *cache.EmbeddingCache
	EmbedModel      string
	FusionSmoothing int
	Logger          *log.Logger
}

// Store executes corpus searches against a pooled Postgres connection.
// Semantic ranking relies on a pgvector embedding column; when the
// embedding provider fails, semantic search degrades to keyword search.
type Store struct {
	pool            *pgxpool.Pool
	embedder        ai.Embedder
	embedCache      *cache.EmbeddingCache
	embedModel      string
	fusionSmoothing int
	logger          *log.Logger
}

func NewStore(ctx context.Context, databaseURL string, config StoreConfig) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create corpus pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping corpus store: %w", err)
	}
	if config.FusionSmoothing <= 0 {
		config.FusionSmoothing = DefaultFusionSmoothing
	}
	if config.EmbedCache == nil {
		config.EmbedCache = cache.NewEmbeddingCache(cache.Config{})
	}

	return &Store{
		pool:            pool,
		embedder:        config.Embedder,
		embedCache:      config.EmbedCache,
		embedModel:      config.EmbedModel,
		fusionSmoothing: config.FusionSmoothing,
		logger:          config.Logger,
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// KeywordSearch ranks articles by lexical full-text relevance.
func (s *Store) KeywordSearch(ctx context.Context, query string, params SearchParams) ([]domain.ArticleRecord, error) {
	args := []any{query}
	where := []string{tsvectorExpr + " @@ plainto_tsquery('english', $1)"}
	where, args = appendFilterClauses(where, args, params)

	args = append(args, normalizeLimit(params.Limit))
	sql := fmt.Sprintf(`
		SELECT %s, ts_rank(%s, plainto_tsquery('english', $1)) AS rank
		FROM articles a
		LEFT JOIN feeds f ON a.feed_id = f.id
		WHERE %s
		ORDER BY rank DESC
		LIMIT $%d`,
		articleColumns, tsvectorExpr, strings.Join(where, " AND "), len(args))

	return s.queryArticles(ctx, sql, args)
}

// SemanticSearch ranks articles by vector distance to the query embedding.
// Embedding-provider failure degrades to the keyword result list.
func (s *Store) SemanticSearch(ctx context.Context, query string, params SearchParams) ([]domain.ArticleRecord, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logf("semantic search falling back to keyword for %q: %v", query, err)
		return s.KeywordSearch(ctx, query, params)
	}

	args := []any{formatVector(vector)}
	where := []string{"a.embedding IS NOT NULL"}
	where, args = appendFilterClauses(where, args, params)

	args = append(args, normalizeLimit(params.Limit))
	sql := fmt.Sprintf(`
		SELECT %s, a.embedding <=> $1::vector AS distance
		FROM articles a
		LEFT JOIN feeds f ON a.feed_id = f.id
		WHERE %s
		ORDER BY distance ASC
		LIMIT $%d`,
		articleColumns, strings.Join(where, " AND "), len(args))

	return s.queryArticles(ctx, sql, args)
}

// HybridSearch runs keyword and semantic searches concurrently and fuses
// the two ranked lists with reciprocal rank fusion. A failed branch is
// logged and contributes nothing; the call fails only when both branches
// fail.
func (s *Store) HybridSearch(ctx context.Context, query string, params SearchParams) ([]domain.ArticleRecord, error) {
	limit := normalizeLimit(params.Limit)
	branchParams := params
	branchParams.Limit = limit * 2

	var (
		keywordResults  []domain.ArticleRecord
		semanticResults []domain.ArticleRecord
		keywordErr      error
		semanticErr     error
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		semanticResults, semanticErr = s.SemanticSearch(ctx, query, branchParams)
	}()
	keywordResults, keywordErr = s.KeywordSearch(ctx, query, branchParams)
	<-done

	if keywordErr != nil && semanticErr != nil {
		return nil, fmt.Errorf("hybrid search: keyword: %w; semantic: %v", keywordErr, semanticErr)
	}
	if keywordErr != nil {
		s.logf("hybrid keyword branch failed for %q: %v", query, keywordErr)
		keywordResults = nil
	}
	if semanticErr != nil {
		s.logf("hybrid semantic branch failed for %q: %v", query, semanticErr)
		semanticResults = nil
	}

	fused := FuseRanked(keywordResults, semanticResults, s.fusionSmoothing)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// FetchSummaries loads summary records for the given article ids in one
// batched query.
func (s *Store) FetchSummaries(ctx context.Context, ids []int64) (map[int64]domain.ArticleRecord, error) {
	if len(ids) == 0 {
		return map[int64]domain.ArticleRecord{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT %s, 0 AS rank
		FROM articles a
		LEFT JOIN feeds f ON a.feed_id = f.id
		WHERE a.id = ANY($1::bigint[])`, articleColumns)

	records, err := s.queryArticles(ctx, sql, []any{ids})
	if err != nil {
		return nil, err
	}

	result := make(map[int64]domain.ArticleRecord, len(records))
	for _, record := range records {
		result[record.ID] = record
	}
	return result, nil
}

func (s *Store) queryArticles(ctx context.Context, sql string, args []any) ([]domain.ArticleRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ArticleRecord, 0, 16)
	for rows.Next() {
		var (
			record      domain.ArticleRecord
			original    *string
			translated  *string
			publishedAt *time.Time
			summary     *string
			bullets     []byte
			tags        []byte
			sentiment   *string
			url         *string
			sourceName  *string
			region      *string
			score       float64
		)
		if err := rows.Scan(
			&record.ID, &original, &translated, &publishedAt,
			&summary, &bullets, &tags, &sentiment,
			&url, &sourceName, &region, &score,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}

		record.OriginalTitle = stringValue(original)
		record.TranslatedTitle = stringValue(translated)
		if publishedAt != nil {
			record.PublishedAt = publishedAt.UTC()
		}
		record.Summary = stringValue(summary)
		record.Bullets = parseStringList(bullets)
		record.Tags = parseStringList(tags)
		record.Sentiment = stringValue(sentiment)
		record.URL = stringValue(url)
		record.SourceName = stringValue(sourceName)
		record.Region = stringValue(region)
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate article rows: %w", rows.Err())
	}
	return records, nil
}

func (s *Store) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, ai.ErrEmbedderUnavailable
	}

	signature := s.embedCache.BuildSignature(s.embedModel, query)
	if entry, found := s.embedCache.Get(signature); found {
		return entry.Vector, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	s.embedCache.Set(signature, cache.Entry{Vector: vector, Model: s.embedModel})
	return vector, nil
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func appendFilterClauses(where []string, args []any, params SearchParams) ([]string, []any) {
	if region := strings.TrimSpace(params.Region); region != "" {
		args = append(args, region)
		where = append(where, fmt.Sprintf("f.region_id = $%d", len(args)))
	}
	if params.DateFrom != "" {
		args = append(args, params.DateFrom)
		where = append(where, fmt.Sprintf("a.published_at >= $%d::timestamptz", len(args)))
	}
	if params.DateTo != "" {
		args = append(args, params.DateTo)
		where = append(where, fmt.Sprintf("a.published_at <= $%d::timestamptz", len(args)))
	}
	if len(params.ExcludeIDs) > 0 {
		args = append(args, params.ExcludeIDs)
		where = append(where, fmt.Sprintf("NOT (a.id = ANY($%d::bigint[]))", len(args)))
	}
	return where, args
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// formatVector renders a pgvector literal: [0.1,0.2,...].
func formatVector(vector []float32) string {
	var builder strings.Builder
	builder.WriteByte('[')
	for i, value := range vector {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(value), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String()
}

func parseStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err == nil {
		return values
	}
	// Some rows store the list as a JSON-encoded string.
	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		if err := json.Unmarshal([]byte(nested), &values); err == nil {
			return values
		}
	}
	return nil
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
