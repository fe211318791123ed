package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mediascope/researcher/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// TasksRepository abstracts research task persistence. Tasks are created
// running and finished exactly once, with either CompleteTask or ErrorTask.
type TasksRepository interface {
	CreateTask(ctx context.Context, task *domain.ResearchTask) error
	CompleteTask(
		ctx context.Context,
		taskID string,
		report *domain.CompiledReport,
		articles []domain.RankedArticle,
		searchLog []domain.SearchLogEntry,
		events []domain.Event,
	) error
	ErrorTask(ctx context.Context, taskID, message string) error
	GetTask(ctx context.Context, taskID string) (*domain.ResearchTask, error)
	ListTasks(ctx context.Context, filter domain.TaskListFilter) ([]domain.TaskListItem, int, error)
}

// MemoryTasksRepository stores tasks in memory for local development.
type MemoryTasksRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.ResearchTask
}

func NewMemoryTasksRepository() *MemoryTasksRepository {
	return &MemoryTasksRepository{
		tasks: make(map[string]*domain.ResearchTask),
	}
}

func (r *MemoryTasksRepository) CreateTask(_ context.Context, task *domain.ResearchTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *MemoryTasksRepository) CompleteTask(
	_ context.Context,
	taskID string,
	report *domain.CompiledReport,
	articles []domain.RankedArticle,
	searchLog []domain.SearchLogEntry,
	events []domain.Event,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	task.Status = domain.TaskStatusComplete
	task.Report = report
	task.Articles = articles
	task.SearchLog = searchLog
	task.Events = events
	task.CompletedAt = &now
	return nil
}

func (r *MemoryTasksRepository) ErrorTask(_ context.Context, taskID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	task.Status = domain.TaskStatusError
	task.ErrorMsg = message
	task.CompletedAt = &now
	return nil
}

func (r *MemoryTasksRepository) GetTask(_ context.Context, taskID string) (*domain.ResearchTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTask(task), nil
}

func (r *MemoryTasksRepository) ListTasks(
	_ context.Context,
	filter domain.TaskListFilter,
) ([]domain.TaskListItem, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	items := make([]domain.TaskListItem, 0, len(r.tasks))
	for _, task := range r.tasks {
		items = append(items, domain.TaskListItem{
			ID:          task.ID,
			Query:       task.Query,
			Status:      task.Status,
			ErrorMsg:    task.ErrorMsg,
			CreatedAt:   task.CreatedAt,
			CompletedAt: task.CompletedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []domain.TaskListItem{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return items[start:end], total, nil
}

func cloneTask(task *domain.ResearchTask) *domain.ResearchTask {
	if task == nil {
		return nil
	}
	clone := *task
	clone.Articles = append([]domain.RankedArticle(nil), task.Articles...)
	clone.SearchLog = append([]domain.SearchLogEntry(nil), task.SearchLog...)
	clone.Events = append([]domain.Event(nil), task.Events...)
	if task.Report != nil {
		report := *task.Report
		clone.Report = &report
	}
	if task.CompletedAt != nil {
		completed := *task.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}
