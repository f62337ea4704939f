package dialog

import "github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/events"

// Event names published by the orchestrator.
const (
	EventDecisionMade     = "dialog.decision_made"
	EventShadowDivergence = "dialog.shadow_divergence"
	EventMessageIgnored   = "dialog.message_ignored"
)

// DecisionMadeEvent is published after every completed pipeline run. It is
// the observability side channel: subscribers (the trace relay, metrics) must
// never feed anything back into routing.
type DecisionMadeEvent struct {
	events.BaseEvent
	DialogID    string `json:"dialogId"`
	MessageID   int64  `json:"messageId,omitempty"`
	AuthorType  string `json:"authorType"`
	RequestType string `json:"requestType"`
	Mode        string `json:"mode"`
	WaitReason  string `json:"waitReason,omitempty"`
	ReplyType   string `json:"replyType,omitempty"`
	CalledFlow  bool   `json:"calledFlow"`
	LockState   string `json:"lockState"`
	ClassifyVia string `json:"classifyVia"`
}

func (DecisionMadeEvent) EventName() string { return EventDecisionMade }

// ShadowDivergenceEvent is published when the advisory shadow evaluation
// disagrees with the route actually taken.
type ShadowDivergenceEvent struct {
	events.BaseEvent
	DialogID    string `json:"dialogId"`
	ActualMode  string `json:"actualMode"`
	ShadowMode  string `json:"shadowMode"`
	WaitReason  string `json:"waitReason,omitempty"`
	RequestType string `json:"requestType"`
}

func (ShadowDivergenceEvent) EventName() string { return EventShadowDivergence }

// MessageIgnoredEvent is published when the stale-message guard drops a
// duplicate or out-of-order delivery.
type MessageIgnoredEvent struct {
	events.BaseEvent
	DialogID        string `json:"dialogId"`
	MessageID       int64  `json:"messageId"`
	LastProcessedID int64  `json:"lastProcessedId"`
}

func (MessageIgnoredEvent) EventName() string { return EventMessageIgnored }
