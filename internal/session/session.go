// Package session defines the per-dialog session entity, its lifecycle
// defaults, the bounded history and the stale-message guard. The session is
// owned exclusively by the dialog orchestrator between load and save; the
// storage format behind the Store seam is opaque to everything else.
package session

import (
	"time"
)

// Routing regimes for a dialog.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Turn author roles.
const (
	RoleClient  = "client"
	RoleManager = "manager"
	RoleBot     = "bot"
	RoleSystem  = "system"
)

// Offer is a priced option produced by a downstream flow. The core never
// interprets offers beyond checking their presence.
type Offer struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Price int64  `json:"price,omitempty"`
}

// State is the domain state consumed by downstream flows. Beyond defaulting,
// the core treats it as a pass-through.
type State struct {
	Stage           string   `json:"stage"`
	ClientName      string   `json:"clientName,omitempty"`
	DeliveryAddress string   `json:"deliveryAddress,omitempty"`
	LastReply       string   `json:"lastReply,omitempty"`
	OEMs            []string `json:"oems"`
	Offers          []Offer  `json:"offers"`
	ChosenOfferID   string   `json:"chosenOfferId,omitempty"`
}

// Turn is one stored history entry.
type Turn struct {
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	TextNormalized string    `json:"textNormalized"`
	MessageID      int64     `json:"messageId,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Ts             time.Time `json:"ts"`
}

// Session is the per-dialog state. Zero values mean "absent" for the
// optional fields (LeadID, DealID, LastProcessedMessageID).
type Session struct {
	DialogID string `json:"dialogId"`
	LeadID   int64  `json:"leadId,omitempty"`
	DealID   int64  `json:"dealId,omitempty"`

	Mode          string   `json:"mode"`
	ManualAckSent bool     `json:"manualAckSent"`
	OEMCandidates []string `json:"oemCandidates"`

	// Lead-side part-number baseline, used to detect the externally
	// triggered empty→filled transition exactly once.
	LastSeenLeadOEM            string `json:"lastSeenLeadOem,omitempty"`
	LeadOEMBaselineInitialized bool   `json:"leadOemBaselineInitialized"`

	History []Turn `json:"history"`

	LastProcessedMessageID int64     `json:"lastProcessedMessageId,omitempty"`
	LastProcessedAt        time.Time `json:"lastProcessedAt,omitempty"`

	LastSmallTalkIntent     string    `json:"lastSmallTalkIntent,omitempty"`
	LastSmallTalkTopic      string    `json:"lastSmallTalkTopic,omitempty"`
	LastSmallTalkNormalized string    `json:"lastSmallTalkNormalized,omitempty"`
	LastSmallTalkAt         time.Time `json:"lastSmallTalkAt,omitempty"`

	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a fresh session for a dialog with all defaults applied.
func New(dialogID string) *Session {
	s := &Session{DialogID: dialogID}
	Normalize(dialogID, s)
	return s
}

// Normalize fills every optional field with its default if absent. It never
// overwrites a present value, which makes it safe to call on both freshly
// created and long-lived sessions after a schema addition.
func Normalize(dialogID string, s *Session) *Session {
	if s == nil {
		return New(dialogID)
	}
	if s.DialogID == "" {
		s.DialogID = dialogID
	}
	if s.Mode == "" {
		s.Mode = ModeAuto
	}
	if s.OEMCandidates == nil {
		s.OEMCandidates = []string{}
	}
	if s.History == nil {
		s.History = []Turn{}
	}
	if s.State.Stage == "" {
		s.State.Stage = "NEW"
	}
	if s.State.OEMs == nil {
		s.State.OEMs = []string{}
	}
	if s.State.Offers == nil {
		s.State.Offers = []Offer{}
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	return s
}

// AcceptMessage applies the stale-message guard. A message is stale iff both
// its ID and the session's last processed ID are present and the message ID
// is not greater. Fresh messages advance the tracking immediately, before any
// downstream work, so near-simultaneous duplicate deliveries cannot both pass.
func (s *Session) AcceptMessage(messageID int64, now time.Time) bool {
	if messageID != 0 && s.LastProcessedMessageID != 0 && messageID <= s.LastProcessedMessageID {
		return false
	}
	if messageID > s.LastProcessedMessageID {
		s.LastProcessedMessageID = messageID
	}
	s.LastProcessedAt = now
	return true
}

// ShouldSkipSmallTalk suppresses a repeated small-talk reply: same intent,
// topic and normalized text within the dedup window get no second answer.
func (s *Session) ShouldSkipSmallTalk(intent, topic, normalizedText string, now time.Time, window time.Duration) bool {
	if intent == "" || normalizedText == "" || window <= 0 {
		return false
	}
	if s.LastSmallTalkAt.IsZero() || now.Sub(s.LastSmallTalkAt) > window {
		return false
	}
	return s.LastSmallTalkIntent == intent &&
		s.LastSmallTalkTopic == topic &&
		s.LastSmallTalkNormalized == normalizedText
}

// RecordSmallTalk remembers the small-talk reply that was just sent.
func (s *Session) RecordSmallTalk(intent, topic, normalizedText string, now time.Time) {
	s.LastSmallTalkIntent = intent
	s.LastSmallTalkTopic = topic
	s.LastSmallTalkNormalized = normalizedText
	s.LastSmallTalkAt = now
}

// HasOffers reports whether a downstream flow already produced offers.
func (s *Session) HasOffers() bool {
	return len(s.State.Offers) > 0
}

// Touch bumps the session's update timestamp.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}
