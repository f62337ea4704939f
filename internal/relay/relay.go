// Package relay ships decision traces off the hot path: every completed
// pipeline run is enqueued as a background task and consumed by a worker.
// The relay is observability plumbing; enqueue failures are logged and
// dropped, never surfaced to the dialog pipeline.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/dialog"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/events"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
)

// Task types handled by the relay worker.
const (
	TaskDecisionTrace    = "dialog:decision_trace"
	TaskShadowDivergence = "dialog:shadow_divergence"
)

// Trace is the persisted form of one pipeline run.
type Trace struct {
	DialogID    string    `json:"dialogId"`
	MessageID   int64     `json:"messageId,omitempty"`
	AuthorType  string    `json:"authorType"`
	RequestType string    `json:"requestType"`
	Mode        string    `json:"mode"`
	WaitReason  string    `json:"waitReason,omitempty"`
	ReplyType   string    `json:"replyType,omitempty"`
	CalledFlow  bool      `json:"calledFlow"`
	LockState   string    `json:"lockState"`
	ClassifyVia string    `json:"classifyVia"`
	DecidedAt   time.Time `json:"decidedAt"`
}

// Divergence is the persisted form of one shadow disagreement.
type Divergence struct {
	DialogID    string    `json:"dialogId"`
	ActualMode  string    `json:"actualMode"`
	ShadowMode  string    `json:"shadowMode"`
	WaitReason  string    `json:"waitReason,omitempty"`
	RequestType string    `json:"requestType"`
	SeenAt      time.Time `json:"seenAt"`
}

// Enqueuer bridges the in-process event bus to the task queue.
type Enqueuer struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

// NewEnqueuer connects a task producer to the relay Redis.
func NewEnqueuer(redisURL, queue string, log *logger.Logger) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	if queue == "" {
		queue = "default"
	}
	return &Enqueuer{client: asynq.NewClient(opt), queue: queue, log: log}, nil
}

// Subscribe registers the enqueuer on the orchestrator's event stream.
func (e *Enqueuer) Subscribe(bus events.Bus) {
	bus.Subscribe(dialog.EventDecisionMade, events.HandlerFunc(e.handleDecision))
	bus.Subscribe(dialog.EventShadowDivergence, events.HandlerFunc(e.handleDivergence))
}

func (e *Enqueuer) handleDecision(ctx context.Context, ev events.Event) error {
	made, ok := ev.(dialog.DecisionMadeEvent)
	if !ok {
		return nil
	}
	return e.enqueue(ctx, TaskDecisionTrace, Trace{
		DialogID:    made.DialogID,
		MessageID:   made.MessageID,
		AuthorType:  made.AuthorType,
		RequestType: made.RequestType,
		Mode:        made.Mode,
		WaitReason:  made.WaitReason,
		ReplyType:   made.ReplyType,
		CalledFlow:  made.CalledFlow,
		LockState:   made.LockState,
		ClassifyVia: made.ClassifyVia,
		DecidedAt:   made.OccurredAt(),
	})
}

func (e *Enqueuer) handleDivergence(ctx context.Context, ev events.Event) error {
	div, ok := ev.(dialog.ShadowDivergenceEvent)
	if !ok {
		return nil
	}
	return e.enqueue(ctx, TaskShadowDivergence, Divergence{
		DialogID:    div.DialogID,
		ActualMode:  div.ActualMode,
		ShadowMode:  div.ShadowMode,
		WaitReason:  div.WaitReason,
		RequestType: div.RequestType,
		SeenAt:      div.OccurredAt(),
	})
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskType, raw)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue), asynq.MaxRetry(3)); err != nil {
		e.log.BackendError("trace_enqueue", err)
	}
	return nil
}

// Close releases the underlying client connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Worker consumes relay tasks. The default handlers only log; a deployment
// that wants traces in a warehouse swaps the handlers, not the pipeline.
type Worker struct {
	server *asynq.Server
	queue  string
	log    *logger.Logger
}

// NewWorker builds a relay consumer.
func NewWorker(redisURL, queue string, concurrency int, log *logger.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	if queue == "" {
		queue = "default"
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})
	return &Worker{server: server, queue: queue, log: log}, nil
}

// Run blocks serving relay tasks until Shutdown.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDecisionTrace, w.handleTrace)
	mux.HandleFunc(TaskShadowDivergence, w.handleDivergence)
	return w.server.Run(mux)
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleTrace(_ context.Context, task *asynq.Task) error {
	var tr Trace
	if err := json.Unmarshal(task.Payload(), &tr); err != nil {
		return err
	}
	w.log.Info("decision_trace",
		"dialog_id", tr.DialogID,
		"message_id", tr.MessageID,
		"author_type", tr.AuthorType,
		"request_type", tr.RequestType,
		"mode", tr.Mode,
		"wait_reason", tr.WaitReason,
		"reply_type", tr.ReplyType,
		"called_flow", tr.CalledFlow,
		"lock_state", tr.LockState,
		"classify_via", tr.ClassifyVia,
	)
	return nil
}

func (w *Worker) handleDivergence(_ context.Context, task *asynq.Task) error {
	var div Divergence
	if err := json.Unmarshal(task.Payload(), &div); err != nil {
		return err
	}
	w.log.Warn("shadow_divergence_trace",
		"dialog_id", div.DialogID,
		"actual", div.ActualMode,
		"shadow", div.ShadowMode,
		"request_type", div.RequestType,
	)
	return nil
}
