package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/MedScribe/internal/domain"
	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/port/broadcast"
	"github.com/Strob0t/MedScribe/internal/port/database"
	"github.com/Strob0t/MedScribe/internal/port/messagequeue"
)

const (
	defaultListLimit = 50
	// sideEffectTimeout bounds storing and announcing a result once the
	// caller's context is no longer in charge.
	sideEffectTimeout = 5 * time.Second
)

// ErrPersistence marks a response that was computed but could not be stored.
var ErrPersistence = errors.New("response persistence failed")

// Processor runs the pipeline for one fragment.
type Processor interface {
	Process(ctx context.Context, frag fragment.Fragment) (*agent.Response, error)
}

// FragmentService wraps the orchestrator with persistence, publication and
// live broadcast. Store, queue and hub are optional.
type FragmentService struct {
	proc  Processor
	store database.Store
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewFragmentService creates a FragmentService.
func NewFragmentService(proc Processor, store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster) *FragmentService {
	return &FragmentService{proc: proc, store: store, queue: queue, hub: hub}
}

// Submit processes a fragment, persists the response and announces it.
// Every failure is published to fragments.failed before it is returned.
// A response computed before the caller cancelled is still stored and
// returned: persistence runs detached from ctx.
func (s *FragmentService) Submit(ctx context.Context, frag fragment.Fragment) (*agent.Response, error) {
	if frag.ID == "" {
		frag.ID = uuid.NewString()
	}

	resp, err := s.proc.Process(ctx, frag)

	ctx, cancel := detach(ctx)
	defer cancel()

	if err != nil {
		s.publishFailure(ctx, frag, StageOf(err), err)
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SaveResponse(ctx, &frag, resp); err != nil {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
			s.publishFailure(ctx, frag, StagePersistence, err)
			return nil, err
		}
	}

	if s.queue != nil {
		data, err := json.Marshal(messagequeue.FragmentProcessedPayload{
			FragmentID: frag.ID,
			SubjectID:  frag.SubjectID,
			Response:   *resp,
		})
		if err == nil {
			err = s.queue.Publish(ctx, messagequeue.SubjectFragmentProcessed, data)
		}
		if err != nil {
			slog.ErrorContext(ctx, "publish processed fragment", "fragment_id", frag.ID, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventResponseCreated, resp)
	}
	return resp, nil
}

// GetResponse returns a stored response.
func (s *FragmentService) GetResponse(ctx context.Context, id string) (*agent.Response, error) {
	if s.store == nil {
		return nil, domain.ErrNotFound
	}
	return s.store.GetResponse(ctx, id)
}

// ListBySubject returns the newest stored responses for a subject.
func (s *FragmentService) ListBySubject(ctx context.Context, subjectID string, limit int) ([]agent.Response, error) {
	if s.store == nil {
		return []agent.Response{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	return s.store.ListResponsesBySubject(ctx, subjectID, limit)
}

// Subscribe consumes fragments.received until the returned cancel is called.
func (s *FragmentService) Subscribe(ctx context.Context) (func(), error) {
	if s.queue == nil {
		return nil, errors.New("no message queue configured")
	}
	return s.queue.Subscribe(ctx, messagequeue.SubjectFragmentReceived, s.HandleReceived)
}

// HandleReceived is the queue handler for fragments.received. Pipeline
// failures are already published by Submit, so redelivering would only
// repeat them; only persistence failures ask for redelivery.
func (s *FragmentService) HandleReceived(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.FragmentReceivedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal fragment: %w", err)
	}
	frag := fragment.Fragment{
		ID:         p.FragmentID,
		Text:       p.Text,
		Speaker:    p.Speaker,
		Timestamp:  p.Timestamp,
		SubjectID:  p.SubjectID,
		Confidence: p.Confidence,
	}
	_, err := s.Submit(ctx, frag)
	if err != nil && StageOf(err) == StagePersistence {
		return err
	}
	return nil
}

// detach keeps ctx values (trace, logger) but drops its cancellation.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (s *FragmentService) publishFailure(ctx context.Context, frag fragment.Fragment, stage string, cause error) {
	payload := messagequeue.FragmentFailedPayload{
		FragmentID: frag.ID,
		SubjectID:  frag.SubjectID,
		Stage:      stage,
		Error:      cause.Error(),
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventFragmentFailed, payload)
	}
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err == nil {
		err = s.queue.Publish(ctx, messagequeue.SubjectFragmentFailed, data)
	}
	if err != nil {
		slog.ErrorContext(ctx, "publish fragment failure", "fragment_id", frag.ID, "error", err)
	}
}

// StageOf names the pipeline stage an error came from.
func StageOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return StageValidation
	case errors.Is(err, domain.ErrExtraction):
		return StageExtraction
	case errors.Is(err, domain.ErrClassification), errors.Is(err, domain.ErrClassificationParse):
		return StageClassification
	case errors.Is(err, ErrPersistence):
		return StagePersistence
	default:
		return StagePipeline
	}
}
