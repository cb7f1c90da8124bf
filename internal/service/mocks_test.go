package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain"
	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/domain/trigger"
	"github.com/Strob0t/MedScribe/internal/port/calendar"
	"github.com/Strob0t/MedScribe/internal/port/messagequeue"
)

type fakeExtractor struct {
	entities []clinical.Entity
	err      error
	calls    atomic.Int32
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) ([]clinical.Entity, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return clinical.Clone(f.entities), nil
}

type fakeCompleter struct {
	reply  string
	err    error
	calls  atomic.Int32
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	f.prompt = prompt
	return f.reply, f.err
}

// stubAgent is a configurable specialist.Agent.
type stubAgent struct {
	name     string
	activate bool
	process  func(ctx context.Context, frag fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (agent.Result, error)
	calls    atomic.Int32
}

func (a *stubAgent) Name() string { return a.name }

func (a *stubAgent) ShouldActivate(trigger.Signals) bool { return a.activate }

func (a *stubAgent) Process(ctx context.Context, frag fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (agent.Result, error) {
	a.calls.Add(1)
	if a.process == nil {
		return agent.Result{}, nil
	}
	return a.process(ctx, frag, entities, intents)
}

func documentAgent(name string, confidence float64) *stubAgent {
	return &stubAgent{
		name:     name,
		activate: true,
		process: func(context.Context, fragment.Fragment, []clinical.Entity, clinical.IntentVector) (agent.Result, error) {
			return agent.Result{
				Documents:  []agent.Document{{Type: name, Content: name + " body"}},
				Confidence: confidence,
			}, nil
		},
	}
}

type fakeCalendar struct {
	mu     sync.Mutex
	events []calendar.Event
}

func (c *fakeCalendar) CreateEvent(_ context.Context, ev calendar.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return "evt-1", nil
}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type memStore struct {
	mu        sync.Mutex
	responses []agent.Response
	fragments []fragment.Fragment
	saveErr   error
}

// SaveResponse fails on a done context, as pgx does.
func (s *memStore) SaveResponse(ctx context.Context, frag *fragment.Fragment, resp *agent.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.fragments = append(s.fragments, *frag)
	s.responses = append(s.responses, *resp)
	return nil
}

func (s *memStore) GetResponse(_ context.Context, id string) (*agent.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.responses {
		if s.responses[i].ID == id {
			r := s.responses[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) ListResponsesBySubject(_ context.Context, subjectID string, limit int) ([]agent.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []agent.Response
	for i := len(s.responses) - 1; i >= 0 && len(out) < limit; i-- {
		if s.responses[i].SubjectID == subjectID {
			out = append(out, s.responses[i])
		}
	}
	return out, nil
}

func (s *memStore) Ping(context.Context) error { return nil }

type published struct {
	subject string
	data    []byte
}

type memQueue struct {
	mu       sync.Mutex
	messages []published
	handlers map[string]messagequeue.Handler
}

func (q *memQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	q.messages = append(q.messages, published{subject: subject, data: data})
	return nil
}

func (q *memQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handlers == nil {
		q.handlers = make(map[string]messagequeue.Handler)
	}
	q.handlers[subject] = h
	return func() {}, nil
}

func (q *memQueue) Drain() error      { return nil }
func (q *memQueue) Close() error      { return nil }
func (q *memQueue) IsConnected() bool { return true }

func (q *memQueue) on(subject string) []published {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []published
	for _, m := range q.messages {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

type memHub struct {
	mu     sync.Mutex
	events []string
}

func (h *memHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}
