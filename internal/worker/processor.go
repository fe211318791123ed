package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mediascope/researcher/internal/domain"
	"github.com/mediascope/researcher/internal/events"
	"github.com/mediascope/researcher/internal/queue"
	"github.com/mediascope/researcher/internal/repository"
	"github.com/mediascope/researcher/internal/research"
)

// Runner executes one research run and streams events to the sink.
type Runner interface {
	Run(ctx context.Context, query string, filters domain.SearchFilters, sink research.EventSink) (*research.Outcome, error)
}

// Processor consumes research submissions, runs the workflow, and persists
// terminal task state. Workflow failures finish the task as errored and are
// not retried; only infrastructure errors propagate to the queue.
type Processor struct {
	consumer queue.Consumer
	repo     repository.TasksRepository
	runner   Runner
	bus      *events.Bus
	logger   *log.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	repo repository.TasksRepository,
	runner Runner,
	bus *events.Bus,
	logger *log.Logger,
) *Processor {
	return &Processor{
		consumer: consumer,
		repo:     repo,
		runner:   runner,
		bus:      bus,
		logger:   logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.SubmissionMessage) error {
	if _, err := p.repo.GetTask(ctx, message.TaskID); err != nil {
		return fmt.Errorf("load task %s: %w", message.TaskID, err)
	}

	recorder := &eventRecorder{bus: p.bus, taskID: message.TaskID}
	defer p.bus.CloseTask(message.TaskID)

	outcome, runErr := p.runner.Run(ctx, message.Query, message.Filters, recorder.sink)
	if runErr != nil {
		if p.logger != nil {
			p.logger.Printf("research run failed task_id=%s err=%v", message.TaskID, runErr)
		}
		p.bus.Publish(message.TaskID, domain.StatusEvent(domain.StatusError, map[string]any{"message": runErr.Error()}))
		p.bus.Publish(message.TaskID, domain.DoneEvent())
		if err := p.repo.ErrorTask(ctx, message.TaskID, runErr.Error()); err != nil {
			return fmt.Errorf("mark task errored: %w", err)
		}
		return nil
	}

	// The stream terminator is delivered live but not persisted; replay
	// synthesizes its own done event.
	p.bus.Publish(message.TaskID, domain.DoneEvent())
	if err := p.repo.CompleteTask(
		ctx,
		message.TaskID,
		outcome.Report,
		outcome.Articles,
		outcome.SearchLog,
		recorder.recorded(),
	); err != nil {
		return fmt.Errorf("mark task complete: %w", err)
	}

	if p.logger != nil {
		p.logger.Printf("research task processed task_id=%s articles=%d", message.TaskID, len(outcome.Articles))
	}
	return nil
}

// eventRecorder forwards every event to the live bus and keeps the
// persistable ones. Progress events stream but are never stored.
type eventRecorder struct {
	bus    *events.Bus
	taskID string

	mu     sync.Mutex
	stored []domain.Event
}

func (r *eventRecorder) sink(event domain.Event) {
	if event.Type != domain.EventProgress {
		r.mu.Lock()
		r.stored = append(r.stored, event)
		r.mu.Unlock()
	}
	r.bus.Publish(r.taskID, event)
}

func (r *eventRecorder) recorded() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.stored...)
}
