package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/mq"
	"github.com/shaiso/Rollout/internal/releases"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/remote/remotetest"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/strategies"
	"github.com/shaiso/Rollout/internal/telemetry"
)

const testConfigYAML = `
application_name: shop
root_directory: /var/www
default: [production]
connections:
  production:
    host: prod.example.com
  staging:
    host: staging.example.com
repository:
  url: git@example.com:shop.git
`

// --- Fakes ---

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	outcomes []domain.DeployOutcome
}

func (p *fakePublisher) PublishDeployCompleted(_ context.Context, outcome domain.DeployOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.outcomes = append(p.outcomes, outcome)
	return nil
}

type fakeNotifier struct {
	outcomes []domain.DeployOutcome
}

func (n *fakeNotifier) Notify(_ context.Context, outcome domain.DeployOutcome) error {
	n.outcomes = append(n.outcomes, outcome)
	return nil
}

type fixture struct {
	worker    *Worker
	fake      *remotetest.Fake
	store     *state.MemoryStore
	publisher *fakePublisher
	notifier  *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	strats, err := strategies.FromConfig(cfg)
	if err != nil {
		t.Fatalf("strategies: %v", err)
	}

	f := &fixture{
		fake:      remotetest.NewFake(),
		store:     state.NewMemoryStore(),
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
	}
	f.worker = New(Config{
		Config:     cfg,
		Strategies: strats,
		Connector:  f.fake,
		Store:      f.store,
		Publisher:  f.publisher,
		Notifier:   f.notifier,
		Retry:      RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Now:        func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
		Logger:     telemetry.Discard(),
	})
	return f
}

// --- Process ---

func TestProcess_Deploy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := domain.NewDeployRequest([]string{"Deploy"}, nil, domain.SourceCLI)
	outcome := f.worker.Process(ctx, req)

	if !outcome.Succeeded {
		t.Fatalf("expected success, got error %q", outcome.Error)
	}
	if outcome.RequestID != req.ID {
		t.Errorf("outcome should carry request id")
	}
	if len(outcome.Passes) != 1 || outcome.Passes[0].Connection != "production" {
		t.Fatalf("expected one pass on default connection, got %+v", outcome.Passes)
	}
	if outcome.Passes[0].RequestID == nil || *outcome.Passes[0].RequestID != req.ID {
		t.Error("pass should be linked to the request")
	}

	current, ok, err := f.store.Get(ctx, "production", releases.KeyCurrentRelease)
	if err != nil || !ok {
		t.Fatalf("current release not stored: ok=%v err=%v", ok, err)
	}
	if current != "20240102030405" {
		t.Errorf("unexpected current release: %s", current)
	}

	if _, ok, _ := f.store.Get(ctx, "staging", releases.KeyCurrentRelease); ok {
		t.Error("staging should not be touched")
	}
}

func TestProcess_ExplicitConnections(t *testing.T) {
	f := newFixture(t)

	req := domain.NewDeployRequest([]string{"php artisan down"}, []string{"staging"}, domain.SourceSchedule)
	outcome := f.worker.Process(context.Background(), req)

	if !outcome.Succeeded {
		t.Fatalf("expected success, got error %q", outcome.Error)
	}
	if len(f.fake.Calls) != 1 || f.fake.Calls[0].Connection != "staging" {
		t.Errorf("expected one call on staging, got %+v", f.fake.Calls)
	}
}

func TestProcess_FailedTask(t *testing.T) {
	f := newFixture(t)
	f.fake.Respond("php artisan down", remote.Result{Output: "boom", Success: false})

	req := domain.NewDeployRequest([]string{"php artisan down"}, nil, domain.SourceCLI)
	outcome := f.worker.Process(context.Background(), req)

	if outcome.Succeeded {
		t.Fatal("expected failure")
	}
	if outcome.Error == "" {
		t.Error("failure should carry an error message")
	}
	if len(outcome.Passes) != 1 || outcome.Passes[0].Status != domain.PassStatusFailed {
		t.Errorf("expected one failed pass, got %+v", outcome.Passes)
	}
}

func TestProcess_InvalidRequest(t *testing.T) {
	tests := []struct {
		name        string
		queue       []string
		connections []string
	}{
		{"empty queue", nil, nil},
		{"unknown connection", []string{"Deploy"}, []string{"missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := domain.NewDeployRequest(tt.queue, tt.connections, domain.SourceCLI)

			outcome := f.worker.Process(context.Background(), req)
			if outcome.Succeeded {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(outcome.Error, ErrInvalidRequest.Error()) {
				t.Errorf("expected invalid request error, got %q", outcome.Error)
			}
			if len(f.fake.Calls) != 0 {
				t.Errorf("no commands should run, got %v", f.fake.Commands())
			}
		})
	}
}

// --- Handler ---

func TestHandleDeployRequested(t *testing.T) {
	f := newFixture(t)

	req := domain.NewDeployRequest([]string{"Current"}, nil, domain.SourceCLI)
	msg, err := mq.NewMessage(mq.MessageTypeDeployRequested, req)
	if err != nil {
		t.Fatal(err)
	}

	// Current без релизов проваливает проход, но сообщение всё равно подтверждается
	if err := f.worker.handleDeployRequested(context.Background(), &mq.Delivery{Message: *msg}); err != nil {
		t.Fatalf("handler should ack, got %v", err)
	}

	if len(f.publisher.outcomes) != 1 || f.publisher.outcomes[0].RequestID != req.ID {
		t.Fatalf("expected published outcome, got %+v", f.publisher.outcomes)
	}
	if f.publisher.outcomes[0].Succeeded {
		t.Error("Current without releases should fail")
	}
	if len(f.notifier.outcomes) != 1 {
		t.Errorf("expected notification, got %d", len(f.notifier.outcomes))
	}
}

func TestHandleDeployRequested_BadPayload(t *testing.T) {
	f := newFixture(t)

	msg := &mq.Message{ID: uuid.NewString(), Type: mq.MessageTypeDeployRequested, Payload: json.RawMessage(`"oops"`)}
	if err := f.worker.handleDeployRequested(context.Background(), &mq.Delivery{Message: *msg}); err == nil {
		t.Fatal("expected parse error")
	}
	if len(f.publisher.outcomes) != 0 {
		t.Error("nothing should be published")
	}
}

func TestHandleDeployRequested_Stopped(t *testing.T) {
	f := newFixture(t)
	f.worker.Stop()

	err := f.worker.handleDeployRequested(context.Background(), &mq.Delivery{})
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped, got %v", err)
	}
}

func TestStart_RequiresConnection(t *testing.T) {
	f := newFixture(t)
	if err := f.worker.Start(context.Background()); err == nil {
		t.Error("expected error without broker connection")
	}
}

// --- Retry ---

func TestDeliver_RetriesPublish(t *testing.T) {
	f := newFixture(t)
	f.publisher.failures = 2

	f.worker.deliver(context.Background(), domain.DeployOutcome{RequestID: uuid.New()})

	if f.publisher.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", f.publisher.calls)
	}
	if len(f.publisher.outcomes) != 1 {
		t.Errorf("outcome should eventually be published")
	}
}

func TestWithRetry_Exhausted(t *testing.T) {
	f := newFixture(t)

	calls := 0
	err := f.worker.withRetry(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("expected ErrRetryExhausted, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestCalculateBackoff(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Backoff: "exponential"}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, policy); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}

	policy.Backoff = "fixed"
	if got := calculateBackoff(5, policy); got != time.Second {
		t.Errorf("fixed backoff should stay at initial delay, got %v", got)
	}
}

// --- WebhookNotifier ---

func TestWebhookNotifier(t *testing.T) {
	var received domain.DeployOutcome
	var token string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		token = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.Notifications{
		Webhook: server.URL,
		Headers: map[string]string{"Authorization": "Bearer t"},
	})

	outcome := domain.DeployOutcome{RequestID: uuid.New(), Succeeded: true}
	if err := n.Notify(context.Background(), outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.RequestID != outcome.RequestID || !received.Succeeded {
		t.Errorf("unexpected payload: %+v", received)
	}
	if token != "Bearer t" {
		t.Errorf("expected Authorization header, got %q", token)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.Notifications{Webhook: server.URL})
	err := n.Notify(context.Background(), domain.DeployOutcome{})
	if !errors.Is(err, ErrNotifyFailed) {
		t.Fatalf("expected ErrNotifyFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("error should mention status, got %v", err)
	}

	if NewWebhookNotifier(config.Notifications{}) != nil {
		t.Error("notifier without webhook should be nil")
	}
}
