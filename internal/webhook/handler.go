// Package webhook receives chat platform callbacks, normalizes them into
// inbound messages and hands them to the dialog pipeline. The endpoint
// answers 200 immediately: the platform retries on timeouts, and duplicate
// deliveries are absorbed by the stale-message guard, not by this handler.
package webhook

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/dialog"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/httpkit"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/validator"
)

// Dispatcher is the dialog pipeline seam.
type Dispatcher interface {
	HandleMessage(ctx context.Context, msg dialog.InboundMessage, lead *dialog.Lead) error
}

// MessageEvent is the inbound chat event payload.
type MessageEvent struct {
	Event     string `json:"event" validate:"required"`
	DialogID  string `json:"dialogId" validate:"required,max=128"`
	MessageID int64  `json:"messageId" validate:"min=0"`
	Text      string `json:"text" validate:"max=8000"`
	HasImage  bool   `json:"hasImage"`

	AuthorID     string `json:"authorId" validate:"max=64"`
	AuthorIsBot  bool   `json:"authorIsBot"`
	SystemLike   bool   `json:"system"`
	ChatEntity   string `json:"chatEntityType" validate:"max=32"`
	ViaConnector bool   `json:"viaConnector"`

	Lead *LeadSnapshot `json:"lead"`
}

// LeadSnapshot is the pre-fetched CRM state accompanying the event.
type LeadSnapshot struct {
	ID       int64  `json:"id" validate:"min=0"`
	StatusID string `json:"statusId" validate:"max=64"`
	OEM      string `json:"oem" validate:"max=64"`
}

// eventMessageAdd is the only event type that drives the pipeline; everything
// else is acknowledged and dropped.
const eventMessageAdd = "ONIMBOTMESSAGEADD"

// Handler handles webhook HTTP requests.
type Handler struct {
	dispatcher Dispatcher
	val        *validator.Validator
	log        *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(dispatcher Dispatcher, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, val: val, log: log}
}

// HandleMessageEvent processes an inbound chat event.
// POST /api/v1/bot/events
func (h *Handler) HandleMessageEvent(c *gin.Context) {
	var ev MessageEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.val.Struct(&ev); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error")
		return
	}

	if !strings.EqualFold(ev.Event, eventMessageAdd) {
		httpkit.OK(c, gin.H{"status": "ignored"})
		return
	}

	msg := dialog.InboundMessage{
		DialogID:     ev.DialogID,
		MessageID:    ev.MessageID,
		Text:         ev.Text,
		HasImage:     ev.HasImage,
		AuthorID:     ev.AuthorID,
		AuthorIsBot:  ev.AuthorIsBot,
		SystemLike:   ev.SystemLike,
		ChatEntity:   ev.ChatEntity,
		ViaConnector: ev.ViaConnector,
	}
	var lead *dialog.Lead
	if ev.Lead != nil {
		lead = &dialog.Lead{ID: ev.Lead.ID, StatusID: ev.Lead.StatusID, OEM: ev.Lead.OEM}
	}

	// Acknowledge before processing: the dialog lock can hold a retrying
	// platform past its webhook timeout otherwise.
	requestCtx := c.Request.Context()
	go func() {
		ctx := logger.WithDialog(context.WithoutCancel(requestCtx), msg.DialogID)
		if err := h.dispatcher.HandleMessage(ctx, msg, lead); err != nil {
			h.log.WithContext(ctx).Error("dialog_pipeline_failed", "error", err.Error())
		}
	}()

	httpkit.OK(c, gin.H{"status": "accepted"})
}
