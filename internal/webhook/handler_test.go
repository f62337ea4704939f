package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/dialog"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/validator"
)

type dispatched struct {
	msg  dialog.InboundMessage
	lead *dialog.Lead
}

type fakeDispatcher struct {
	calls chan dispatched
}

func (d *fakeDispatcher) HandleMessage(_ context.Context, msg dialog.InboundMessage, lead *dialog.Lead) error {
	d.calls <- dispatched{msg: msg, lead: lead}
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeDispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d := &fakeDispatcher{calls: make(chan dispatched, 1)}
	h := NewHandler(d, validator.New(), logger.New("development"))

	engine := gin.New()
	engine.POST("/api/v1/bot/events", h.HandleMessageEvent)
	return engine, d
}

func postEvent(t *testing.T, engine *gin.Engine, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bot/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessageEventDispatches(t *testing.T) {
	engine, d := newTestRouter(t)

	rec := postEvent(t, engine, MessageEvent{
		Event:        "ONIMBOTMESSAGEADD",
		DialogID:     "chat42",
		MessageID:    7,
		Text:         "нужен 4N0907998",
		ChatEntity:   "LINES",
		ViaConnector: true,
		Lead:         &LeadSnapshot{ID: 5, StatusID: "NEW"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	select {
	case got := <-d.calls:
		if got.msg.DialogID != "chat42" || got.msg.MessageID != 7 {
			t.Fatalf("unexpected dispatch: %+v", got.msg)
		}
		if got.lead == nil || got.lead.ID != 5 {
			t.Fatalf("expected lead snapshot, got %+v", got.lead)
		}
	case <-time.After(time.Second):
		t.Fatalf("event was not dispatched")
	}
}

func TestHandleMessageEventIgnoresOtherEvents(t *testing.T) {
	engine, d := newTestRouter(t)

	rec := postEvent(t, engine, MessageEvent{Event: "ONIMBOTJOINCHAT", DialogID: "chat42"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", rec.Code)
	}

	select {
	case got := <-d.calls:
		t.Fatalf("unexpected dispatch for ignored event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleMessageEventRejectsInvalidPayloads(t *testing.T) {
	engine, _ := newTestRouter(t)

	// Missing dialogId.
	rec := postEvent(t, engine, map[string]any{"event": "ONIMBOTMESSAGEADD"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing dialog id, got %d", rec.Code)
	}

	// Broken JSON.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bot/events", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for broken JSON, got %d", rec.Code)
	}
}
