// Package dialog is the orchestration core: it turns an inbound chat message
// into exactly one action — reply, downstream flow call, CRM mutation, or
// silence — while the lock coordinator guarantees no two executions overlap
// for one dialog.
package dialog

import (
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/crm"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/session"
)

// Wait reasons for passive decisions.
const (
	WaitSystem      = "SYSTEM"
	WaitOEMManual   = "WAIT_OEM_MANUAL"
	WaitEmpty       = "EMPTY"
	WaitVIN         = "VIN_WAIT_OEM"
	WaitPhoto       = "PHOTO_WAIT_OEM"
	WaitComplex     = "COMPLEX_WAIT_OEM"
	WaitNoTokenText = "NO_TOKEN_TEXT"
)

// Reply types for active decisions.
const (
	ReplyManualAck = "MANUAL_ACK"
	ReplyAutoStart = "AUTO_START"
)

// GateInput is the normalized tuple the gate decides on. It carries signals
// only; the text classifiers that produce them live in internal/signal and
// run before the gate.
type GateInput struct {
	AuthorType  string
	RequestType string

	// Stage is the funnel stage key resolved from the lead status, or ""
	// when the lead has no recognized status yet.
	Stage string
	// ManualStatus is true when the raw lead status is in the manual set.
	ManualStatus bool

	SessionMode   string
	ManualAckSent bool

	// LeadOEM is the current value of the lead-side part-number field.
	LeadOEM string

	DetectedTokens []string
	HasImage       bool

	HasOffers        bool
	OfferReplyLikely bool
}

// Decision is the gate's action contract. It is a pure value: equal inputs
// always produce an equal decision, and nothing here is ever persisted.
type Decision struct {
	Mode       string
	WaitReason string

	ShouldReply bool
	ReplyType   string

	ShouldCallDownstream   bool
	ShouldMoveStage        bool
	ShouldWriteFieldToLead bool

	// FieldCandidates are the unique detected tokens, in detection order.
	FieldCandidates []string
}

// textAllowedStages are the funnel stages where plain no-token text may reach
// a downstream flow. Pricing is handled separately: it additionally requires
// existing offers and offer-reply phrasing.
var textAllowedStages = map[string]bool{
	crm.StageNew:        true,
	"":                  true,
	crm.StageContact:    true,
	crm.StageAddress:    true,
	crm.StageFinal:      true,
	crm.StageABCPCreate: true,
}

// Decide maps a gate input to a decision. Rules are evaluated in a fixed
// order and the first match wins; later rules are never reached once one
// fires.
func Decide(in GateInput) Decision {
	mode := in.SessionMode
	if mode == "" {
		mode = session.ModeAuto
	}

	// System events never produce a reply or a downstream call.
	if in.AuthorType == AuthorSystem {
		return Decision{Mode: mode, WaitReason: WaitSystem}
	}

	// Manual lock: a manual lead status, a manager speaking, or a session
	// already switched to manual. The bot stays silent until the lead-side
	// part-number field is filled externally; it must not re-derive the
	// number from chat text even if the client resends it.
	if in.ManualStatus || in.AuthorType == AuthorManager || in.SessionMode == session.ModeManual {
		if in.LeadOEM != "" && in.AuthorType != AuthorManager {
			return Decision{
				Mode:                 session.ModeAuto,
				ShouldReply:          true,
				ReplyType:            ReplyAutoStart,
				ShouldCallDownstream: true,
				ShouldMoveStage:      true,
			}
		}
		return Decision{Mode: session.ModeManual, WaitReason: WaitOEMManual}
	}

	if in.RequestType == RequestEmpty {
		return Decision{Mode: mode, WaitReason: WaitEmpty}
	}

	// A VIN without a coexisting valid token forces manual handling. The
	// acknowledgement is sent at most once per manual episode.
	if in.RequestType == RequestVIN {
		d := Decision{
			Mode:            session.ModeManual,
			WaitReason:      WaitVIN,
			ShouldMoveStage: true,
		}
		if !in.ManualAckSent {
			d.ShouldReply = true
			d.ReplyType = ReplyManualAck
		}
		return d
	}

	if in.RequestType == RequestComplex {
		reason := WaitComplex
		if in.HasImage {
			reason = WaitPhoto
		}
		d := Decision{
			Mode:            session.ModeManual,
			WaitReason:      reason,
			ShouldMoveStage: true,
		}
		if !in.ManualAckSent {
			d.ShouldReply = true
			d.ReplyType = ReplyManualAck
		}
		return d
	}

	if len(in.DetectedTokens) > 0 {
		unique := uniqueTokens(in.DetectedTokens)
		return Decision{
			Mode:                 session.ModeAuto,
			ShouldReply:          true,
			ReplyType:            ReplyAutoStart,
			ShouldCallDownstream: true,
			ShouldMoveStage:      true,
			// Writing the lead field is only safe when there is nothing
			// to disambiguate and nothing to overwrite.
			ShouldWriteFieldToLead: len(unique) == 1 && in.LeadOEM == "",
			FieldCandidates:        unique,
		}
	}

	if in.RequestType == RequestText {
		if textAllowedStages[in.Stage] {
			return Decision{Mode: session.ModeAuto, ShouldCallDownstream: true}
		}
		if in.Stage == crm.StagePricing && in.HasOffers && in.OfferReplyLikely {
			return Decision{Mode: session.ModeAuto, ShouldCallDownstream: true}
		}
	}

	return Decision{Mode: mode, WaitReason: WaitNoTokenText}
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
