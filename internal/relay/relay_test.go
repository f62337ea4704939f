package relay

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/dialog"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/events"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
)

func newTestEnqueuer(t *testing.T) (*Enqueuer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	e, err := NewEnqueuer("redis://"+mr.Addr(), "traces", logger.New("development"))
	if err != nil {
		t.Fatalf("NewEnqueuer: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, mr
}

func TestEnqueuerShipsDecisionTraces(t *testing.T) {
	e, mr := newTestEnqueuer(t)

	ev := dialog.DecisionMadeEvent{
		BaseEvent:   events.NewBaseEvent(),
		DialogID:    "d1",
		MessageID:   7,
		AuthorType:  "client",
		RequestType: "OEM",
		Mode:        "auto",
		ReplyType:   "AUTO_START",
		CalledFlow:  true,
		LockState:   "acquired",
		ClassifyVia: "legacy",
	}
	if err := e.handleDecision(context.Background(), ev); err != nil {
		t.Fatalf("handleDecision: %v", err)
	}

	if len(mr.Keys()) == 0 {
		t.Fatalf("expected the task to land in redis")
	}
}

func TestEnqueuerIgnoresForeignEvents(t *testing.T) {
	e, mr := newTestEnqueuer(t)

	ev := dialog.MessageIgnoredEvent{BaseEvent: events.NewBaseEvent(), DialogID: "d1"}
	if err := e.handleDecision(context.Background(), ev); err != nil {
		t.Fatalf("handleDecision: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("foreign events must not be enqueued, keys=%v", mr.Keys())
	}
}
