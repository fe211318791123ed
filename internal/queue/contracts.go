package queue

import (
	"context"

	"github.com/mediascope/researcher/internal/domain"
)

// Producer sends research submissions to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.SubmissionMessage) error
}

// Consumer receives research submissions and executes handlers.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.SubmissionMessage) error) error
}
