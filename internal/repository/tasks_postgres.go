package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediascope/researcher/internal/domain"
)

const createTasksTableSQL = `
CREATE TABLE IF NOT EXISTS research_tasks (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	filters JSONB,
	status TEXT NOT NULL DEFAULT 'running',
	report JSONB,
	articles JSONB,
	search_log JSONB,
	events JSONB,
	error TEXT,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_research_tasks_created
	ON research_tasks(created_at DESC);
`

type PostgresTasksRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTasksRepository(ctx context.Context, databaseURL string) (*PostgresTasksRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresTasksRepository{pool: pool}, nil
}

func (r *PostgresTasksRepository) Close() {
	r.pool.Close()
}

// EnsureSchema creates the research_tasks table when missing.
func (r *PostgresTasksRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createTasksTableSQL); err != nil {
		return fmt.Errorf("ensure research_tasks table: %w", err)
	}
	return nil
}

func (r *PostgresTasksRepository) CreateTask(ctx context.Context, task *domain.ResearchTask) error {
	filters, err := marshalNullable(task.Filters, task.Filters.IsZero())
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO research_tasks (id, query, filters, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		task.ID,
		task.Query,
		filters,
		string(task.Status),
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert research task: %w", err)
	}
	return nil
}

func (r *PostgresTasksRepository) CompleteTask(
	ctx context.Context,
	taskID string,
	report *domain.CompiledReport,
	articles []domain.RankedArticle,
	searchLog []domain.SearchLogEntry,
	events []domain.Event,
) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	articlesJSON, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}
	searchLogJSON, err := json.Marshal(searchLog)
	if err != nil {
		return fmt.Errorf("encode search log: %w", err)
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	command, err := r.pool.Exec(ctx, `
		UPDATE research_tasks
		SET status = 'complete',
			report = $2,
			articles = $3,
			search_log = $4,
			events = $5,
			completed_at = NOW()
		WHERE id = $1
	`, taskID, reportJSON, articlesJSON, searchLogJSON, eventsJSON)
	if err != nil {
		return fmt.Errorf("complete research task: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTasksRepository) ErrorTask(ctx context.Context, taskID, message string) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE research_tasks
		SET status = 'error', error = $2, completed_at = NOW()
		WHERE id = $1
	`, taskID, message)
	if err != nil {
		return fmt.Errorf("mark research task errored: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTasksRepository) GetTask(ctx context.Context, taskID string) (*domain.ResearchTask, error) {
	var (
		task        domain.ResearchTask
		status      string
		filters     []byte
		report      []byte
		articles    []byte
		searchLog   []byte
		events      []byte
		errorMsg    *string
		completedAt *time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, query, filters, status, report, articles, search_log, events, error, created_at, completed_at
		FROM research_tasks
		WHERE id = $1
	`, taskID).Scan(
		&task.ID,
		&task.Query,
		&filters,
		&status,
		&report,
		&articles,
		&searchLog,
		&events,
		&errorMsg,
		&task.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query research task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	task.CompletedAt = completedAt
	if errorMsg != nil {
		task.ErrorMsg = *errorMsg
	}
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &task.Filters); err != nil {
			return nil, fmt.Errorf("decode filters: %w", err)
		}
	}
	if len(report) > 0 {
		task.Report = &domain.CompiledReport{}
		if err := json.Unmarshal(report, task.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	if len(articles) > 0 {
		if err := json.Unmarshal(articles, &task.Articles); err != nil {
			return nil, fmt.Errorf("decode articles: %w", err)
		}
	}
	if len(searchLog) > 0 {
		if err := json.Unmarshal(searchLog, &task.SearchLog); err != nil {
			return nil, fmt.Errorf("decode search log: %w", err)
		}
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &task.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	}
	return &task, nil
}

func (r *PostgresTasksRepository) ListTasks(
	ctx context.Context,
	filter domain.TaskListFilter,
) ([]domain.TaskListItem, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM research_tasks`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count research tasks: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, query, status, error, created_at, completed_at
		FROM research_tasks
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, filter.PageSize, (filter.Page-1)*filter.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list research tasks: %w", err)
	}
	defer rows.Close()

	items := make([]domain.TaskListItem, 0, filter.PageSize)
	for rows.Next() {
		var (
			item     domain.TaskListItem
			status   string
			errorMsg *string
		)
		if err := rows.Scan(&item.ID, &item.Query, &status, &errorMsg, &item.CreatedAt, &item.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("scan research task item: %w", err)
		}
		item.Status = domain.TaskStatus(status)
		if errorMsg != nil {
			item.ErrorMsg = *errorMsg
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate research task items: %w", rows.Err())
	}

	return items, total, nil
}

func marshalNullable(value any, isZero bool) ([]byte, error) {
	if isZero {
		return nil, nil
	}
	return json.Marshal(value)
}
