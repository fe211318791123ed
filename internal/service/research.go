package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediascope/researcher/internal/domain"
	"github.com/mediascope/researcher/internal/queue"
	"github.com/mediascope/researcher/internal/repository"
)

// ResearchService creates research tasks and hands them to the queue.
type ResearchService struct {
	repo     repository.TasksRepository
	producer queue.Producer
}

func NewResearchService(repo repository.TasksRepository, producer queue.Producer) *ResearchService {
	return &ResearchService{repo: repo, producer: producer}
}

// Submit registers a running task and enqueues it for the worker. When the
// enqueue fails the task is finished as errored so no record stays running
// forever.
func (s *ResearchService) Submit(ctx context.Context, query string, filters domain.SearchFilters) (*domain.ResearchTask, error) {
	now := time.Now().UTC()
	task := &domain.ResearchTask{
		ID:        newTaskID(),
		Query:     query,
		Filters:   filters,
		Status:    domain.TaskStatusRunning,
		CreatedAt: now,
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create research task: %w", err)
	}

	message := domain.SubmissionMessage{
		TaskID:      task.ID,
		Query:       query,
		Filters:     filters,
		Attempt:     0,
		RequestedAt: now,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		_ = s.repo.ErrorTask(ctx, task.ID, fmt.Sprintf("enqueue failed: %v", err))
		return nil, fmt.Errorf("enqueue research task: %w", err)
	}

	return task, nil
}

func (s *ResearchService) GetTask(ctx context.Context, taskID string) (*domain.ResearchTask, error) {
	return s.repo.GetTask(ctx, taskID)
}

func (s *ResearchService) ListTasks(
	ctx context.Context,
	filter domain.TaskListFilter,
) ([]domain.TaskListItem, int, error) {
	return s.repo.ListTasks(ctx, filter)
}

func newTaskID() string {
	return "res_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
