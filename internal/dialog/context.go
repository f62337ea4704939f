package dialog

import (
	"strings"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/session"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/signal"
)

// Author types as seen by the gate.
const (
	AuthorClient  = "client"
	AuthorManager = "manager"
	AuthorSystem  = "system"
)

// Request types derived from the message content.
const (
	RequestEmpty   = "EMPTY"
	RequestOEM     = "OEM"
	RequestVIN     = "VIN"
	RequestComplex = "COMPLEX"
	RequestText    = "TEXT"
)

// InboundMessage is the normalized webhook payload the orchestrator works on.
type InboundMessage struct {
	DialogID  string
	MessageID int64
	Text      string
	HasImage  bool

	AuthorID     string
	AuthorIsBot  bool
	SystemLike   bool
	ChatEntity   string // "LINES" for open-lines chats
	ViaConnector bool   // author joined through the open-lines connector
}

// Lead is the pre-fetched CRM snapshot. The core reads it, decides, and hands
// mutations back to the caller; it never talks to the CRM itself.
type Lead struct {
	ID       int64
	StatusID string
	// OEM is the current value of the lead-side part-number field.
	OEM string
}

// AuthorType classifies the message author. Bot and system-like events are
// system; in open-lines chats the connector side is the client and everyone
// else is a manager; outside open lines everyone is a client.
func AuthorType(m InboundMessage) string {
	if m.AuthorIsBot || m.SystemLike {
		return AuthorSystem
	}
	if strings.EqualFold(m.ChatEntity, "LINES") {
		if m.ViaConnector {
			return AuthorClient
		}
		return AuthorManager
	}
	return AuthorClient
}

// authorRole maps a gate author type onto a session history role.
func authorRole(authorType string) string {
	switch authorType {
	case AuthorManager:
		return session.RoleManager
	case AuthorSystem:
		return session.RoleSystem
	default:
		return session.RoleClient
	}
}

// RequestType derives the request type from the message content and the
// already-detected tokens. A valid token always wins over a VIN in the same
// message; an image only counts as complex when no token accompanies it.
func RequestType(text string, hasImage bool, tokens []string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && !hasImage {
		return RequestEmpty
	}
	if len(tokens) > 0 {
		return RequestOEM
	}
	if signal.IsVINLike(trimmed) {
		return RequestVIN
	}
	if hasImage {
		return RequestComplex
	}
	return RequestText
}
