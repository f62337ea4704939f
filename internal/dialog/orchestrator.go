package dialog

import (
	"context"
	"time"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/classify"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/crm"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/lock"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/session"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/signal"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/events"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
)

// Pre-emption wait reasons. These short-circuit the pipeline before the gate.
const (
	WaitDealBound      = "DEAL_BOUND"
	WaitBotDisabled    = "BOT_DISABLED"
	WaitRepeatFollowup = "REPEAT_FOLLOWUP"
	WaitSmallTalk      = "SMALL_TALK"
	ReplyManualTrigger = "MANUAL_TRIGGER"
)

// Gate-authored reply texts. Flows write their own replies; the core only
// ever speaks to acknowledge a manual hand-off or an automatic start.
const (
	manualAckText = "Приветствуем! Принял ваш запрос, менеджер уже работает над подбором и даст ответ в этом чате."
	autoStartText = "Вижу номер детали, уже подбираю варианты. Вернусь с предложением в ближайшее время."
)

// Flow is one downstream processing strategy. Invoked at most once per
// message; handled=false means the flow declined and the message ends silent.
type Flow interface {
	Name() string
	Handle(ctx context.Context, fc *FlowContext) (handled bool, err error)
}

// Replier delivers a single outbound chat message.
type Replier interface {
	Send(ctx context.Context, dialogID, text string) error
}

// CRMPort applies the two lead mutations the gate can order.
type CRMPort interface {
	WriteOEM(ctx context.Context, leadID int64, oem string) error
	MoveStage(ctx context.Context, leadID int64, stageKey string) error
}

// ShadowProbe computes the hypothetical route of the alternate strategy, for
// comparison only. Implementations must be side-effect free towards the user.
type ShadowProbe interface {
	Probe(ctx context.Context, msg InboundMessage, s *session.Session) string
}

// FlowContext is what a Flow receives: the locked session, the normalized
// message, the CRM snapshot and the gate's verdict.
type FlowContext struct {
	Session     *session.Session
	Message     InboundMessage
	Lead        *Lead
	AuthorType  string
	RequestType string
	Tokens      []string
	Decision    Decision
	ClassifyVia string
	LockState   string
}

// Deps wires the orchestrator. Locks, Store and Log are required; everything
// else degrades to a no-op when absent.
type Deps struct {
	Locks    *lock.Coordinator
	Store    session.Store
	Settings *crm.Settings
	Classify classify.Config
	Bus      events.Bus
	Log      *logger.Logger

	Flows   map[string]Flow // keyed by classify.ModeLegacy / classify.ModeNew
	Replier Replier
	CRM     CRMPort
	Shadow  ShadowProbe

	ScopeID         string
	HistoryMaxTurns int
	SmallTalkDedup  time.Duration
}

// Orchestrator runs the per-message pipeline under the dialog lock.
type Orchestrator struct {
	deps Deps
	now  func() time.Time
}

// NewOrchestrator creates the pipeline. Settings default to the built-in
// funnel mapping when nil.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Settings == nil {
		deps.Settings = crm.Default()
	}
	if deps.ScopeID == "" {
		deps.ScopeID = "dialog"
	}
	if deps.HistoryMaxTurns <= 0 {
		deps.HistoryMaxTurns = session.DefaultHistoryMaxTurns
	}
	return &Orchestrator{deps: deps, now: time.Now}
}

// HandleMessage processes one inbound message end to end. The whole pipeline
// runs inside the dialog lock; the returned error is a downstream flow error,
// never a locking or storage one.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg InboundMessage, lead *Lead) error {
	ctx = logger.WithDialog(ctx, msg.DialogID)
	return o.deps.Locks.WithLock(ctx, o.deps.ScopeID, msg.DialogID, func(ctx context.Context, meta lock.Meta) error {
		return o.process(ctx, meta, msg, lead)
	})
}

func (o *Orchestrator) process(ctx context.Context, meta lock.Meta, msg InboundMessage, lead *Lead) error {
	log := o.deps.Log.WithContext(ctx)
	now := o.now()

	s, err := o.deps.Store.Get(ctx, o.deps.ScopeID, msg.DialogID)
	if err != nil {
		// Storage trouble degrades to a fresh session rather than dropping
		// the message; the save at the end is best-effort too.
		log.BackendError("session_load", err)
		s = nil
	}
	s = session.Normalize(msg.DialogID, s)

	tokens := signal.DetectTokens(msg.Text)
	author := AuthorType(msg)
	reqType := RequestType(msg.Text, msg.HasImage, tokens)

	if !s.AcceptMessage(msg.MessageID, now) {
		log.StaleMessage(msg.DialogID, msg.MessageID, s.LastProcessedMessageID)
		o.publish(ctx, MessageIgnoredEvent{
			BaseEvent:       events.NewBaseEvent(),
			DialogID:        msg.DialogID,
			MessageID:       msg.MessageID,
			LastProcessedID: s.LastProcessedMessageID,
		})
		return nil
	}

	// Followup detection must see the history as it was before this
	// message; the ping itself must not count as the prior client turn.
	var followup *session.Followup
	if author != AuthorSystem {
		followup = s.DetectRepeatFollowup(msg.Text, authorRole(author), msg.HasImage, tokens, now)
		s.AppendTurn(authorRole(author), msg.Text, msg.MessageID, reqType, now, o.deps.HistoryMaxTurns)
	}

	mode := o.deps.Classify.Resolve(msg.DialogID)
	run := pipelineRun{
		msg: msg, lead: lead, session: s,
		author: author, reqType: reqType, tokens: tokens,
		classifyVia: mode, lockState: meta.Lock, now: now,
	}

	// Pre-emption rules, fixed order. Each match persists and returns.
	if s.DealID != 0 {
		return o.finish(ctx, run, Decision{Mode: s.Mode, WaitReason: WaitDealBound}, false)
	}
	if lead != nil && o.deps.Settings.IsBotDisabledStatus(lead.StatusID) {
		return o.finish(ctx, run, Decision{Mode: s.Mode, WaitReason: WaitBotDisabled}, false)
	}
	if followup != nil {
		o.reply(ctx, run, s.RepeatFollowupReply(followup))
		return o.finish(ctx, run, Decision{Mode: s.Mode, WaitReason: WaitRepeatFollowup, ShouldReply: true}, false)
	}
	if triggered := o.syncLeadOEMBaseline(s, lead); triggered {
		return o.runManualTrigger(ctx, run)
	}
	if done, err := o.trySmallTalk(ctx, run); done {
		return err
	}

	d := Decide(GateInput{
		AuthorType:       author,
		RequestType:      reqType,
		Stage:            o.stageKey(lead),
		ManualStatus:     lead != nil && o.deps.Settings.IsManualStatus(lead.StatusID),
		SessionMode:      s.Mode,
		ManualAckSent:    s.ManualAckSent,
		LeadOEM:          leadOEM(lead),
		DetectedTokens:   tokens,
		HasImage:         msg.HasImage,
		HasOffers:        s.HasOffers(),
		OfferReplyLikely: signal.LooksLikeOfferReply(msg.Text),
	})
	return o.apply(ctx, run, d)
}

// pipelineRun bundles the per-message values threaded through the tail of
// the pipeline.
type pipelineRun struct {
	msg         InboundMessage
	lead        *Lead
	session     *session.Session
	author      string
	reqType     string
	tokens      []string
	classifyVia string
	lockState   string
	now         time.Time
}

// apply executes a gate decision: mode transition, reply, CRM mutations and
// at most one flow call.
func (o *Orchestrator) apply(ctx context.Context, run pipelineRun, d Decision) error {
	s := run.session
	log := o.deps.Log.WithContext(ctx)

	prevMode := s.Mode
	s.Mode = d.Mode
	if prevMode == session.ModeManual && d.Mode == session.ModeAuto {
		// A new manual episode gets a fresh acknowledgement.
		s.ManualAckSent = false
	}
	if len(d.FieldCandidates) > 0 {
		s.OEMCandidates = d.FieldCandidates
	}

	if d.ShouldReply {
		o.reply(ctx, run, replyText(d))
		if d.ReplyType == ReplyManualAck {
			s.ManualAckSent = true
		}
	}

	if o.deps.CRM != nil && run.lead != nil && run.lead.ID != 0 {
		if d.ShouldWriteFieldToLead && len(d.FieldCandidates) == 1 {
			if err := o.deps.CRM.WriteOEM(ctx, run.lead.ID, d.FieldCandidates[0]); err != nil {
				log.BackendError("crm_write_oem", err)
			}
		}
		if d.ShouldMoveStage {
			if err := o.deps.CRM.MoveStage(ctx, run.lead.ID, stageFor(d)); err != nil {
				log.BackendError("crm_move_stage", err)
			}
		}
	}

	if !d.ShouldCallDownstream {
		return o.finish(ctx, run, d, false)
	}

	called, flowErr := o.callFlow(ctx, run, d)
	if err := o.finish(ctx, run, d, called); err != nil {
		return err
	}
	return flowErr
}

// callFlow invokes the strategy-selected flow at most once. A flow error is
// reported to the caller but never skips persistence.
func (o *Orchestrator) callFlow(ctx context.Context, run pipelineRun, d Decision) (bool, error) {
	flow := o.selectFlow(run.classifyVia)
	if flow == nil {
		return false, nil
	}
	fc := &FlowContext{
		Session:     run.session,
		Message:     run.msg,
		Lead:        run.lead,
		AuthorType:  run.author,
		RequestType: run.reqType,
		Tokens:      run.tokens,
		Decision:    d,
		ClassifyVia: run.classifyVia,
		LockState:   run.lockState,
	}
	if _, err := flow.Handle(ctx, fc); err != nil {
		o.deps.Log.WithContext(ctx).Error("flow_failed", "flow", flow.Name(), "error", err.Error())
		return true, err
	}
	return true, nil
}

// finish is the single exit point: shadow comparison, persist, trace.
func (o *Orchestrator) finish(ctx context.Context, run pipelineRun, d Decision, calledFlow bool) error {
	o.compareShadow(ctx, run, d, calledFlow)
	o.persist(ctx, run.session)
	o.publish(ctx, DecisionMadeEvent{
		BaseEvent:   events.NewBaseEvent(),
		DialogID:    run.msg.DialogID,
		MessageID:   run.msg.MessageID,
		AuthorType:  run.author,
		RequestType: run.reqType,
		Mode:        d.Mode,
		WaitReason:  d.WaitReason,
		ReplyType:   d.ReplyType,
		CalledFlow:  calledFlow,
		LockState:   run.lockState,
		ClassifyVia: run.classifyVia,
	})
	return nil
}

// syncLeadOEMBaseline tracks the lead-side part-number field across calls and
// reports the externally-triggered empty→filled transition exactly once. The
// baseline is always synced, even when nothing triggers, so a pre-existing
// value never fires retroactively.
func (o *Orchestrator) syncLeadOEMBaseline(s *session.Session, lead *Lead) bool {
	if lead == nil {
		return false
	}
	triggered := s.LeadOEMBaselineInitialized &&
		s.Mode == session.ModeManual &&
		s.LastSeenLeadOEM == "" &&
		lead.OEM != ""
	s.LastSeenLeadOEM = lead.OEM
	s.LeadOEMBaselineInitialized = true
	return triggered
}

// runManualTrigger resumes automatic handling after a manager filled the
// lead-side part-number field.
func (o *Orchestrator) runManualTrigger(ctx context.Context, run pipelineRun) error {
	s := run.session
	s.Mode = session.ModeAuto
	s.ManualAckSent = false

	d := Decision{
		Mode:                 session.ModeAuto,
		ShouldReply:          true,
		ReplyType:            ReplyManualTrigger,
		ShouldCallDownstream: true,
		ShouldMoveStage:      true,
	}
	o.reply(ctx, run, autoStartText)

	if o.deps.CRM != nil && run.lead != nil && run.lead.ID != 0 {
		if err := o.deps.CRM.MoveStage(ctx, run.lead.ID, crm.StageInWork); err != nil {
			o.deps.Log.WithContext(ctx).BackendError("crm_move_stage", err)
		}
	}

	called, flowErr := o.callFlow(ctx, run, d)
	if err := o.finish(ctx, run, d, called); err != nil {
		return err
	}
	return flowErr
}

// trySmallTalk answers off-topic and how-to questions without touching the
// gate. Returns done=true when the message was consumed here.
func (o *Orchestrator) trySmallTalk(ctx context.Context, run pipelineRun) (bool, error) {
	if run.author != AuthorClient || run.reqType != RequestText {
		return false, nil
	}
	st := signal.ResolveSmallTalk(run.msg.Text)
	if st == nil {
		return false, nil
	}

	s := run.session
	norm := signal.NormalizeText(run.msg.Text)
	d := Decision{Mode: s.Mode, WaitReason: WaitSmallTalk}

	if !s.ShouldSkipSmallTalk(st.Intent, st.Topic, norm, run.now, o.deps.SmallTalkDedup) {
		o.reply(ctx, run, st.Reply)
		s.RecordSmallTalk(st.Intent, st.Topic, norm, run.now)
		d.ShouldReply = true
	}
	return true, o.finish(ctx, run, d, false)
}

func (o *Orchestrator) selectFlow(classifyVia string) Flow {
	if o.deps.Flows == nil {
		return nil
	}
	if f, ok := o.deps.Flows[classifyVia]; ok && f != nil {
		return f
	}
	return o.deps.Flows[classify.ModeLegacy]
}

// compareShadow runs the advisory alternate-strategy probe on sampled
// legacy-routed dialogs. Divergence is logged and published, never acted on.
func (o *Orchestrator) compareShadow(ctx context.Context, run pipelineRun, d Decision, calledFlow bool) {
	if o.deps.Shadow == nil {
		return
	}
	if !o.deps.Classify.ShouldShadow(run.msg.DialogID, run.classifyVia) {
		return
	}

	actual := routeLabel(d, calledFlow)
	shadow := o.deps.Shadow.Probe(ctx, run.msg, run.session)
	if shadow == "" || shadow == actual {
		return
	}
	o.deps.Log.WithContext(ctx).ShadowDivergence(run.msg.DialogID, actual, shadow)
	o.publish(ctx, ShadowDivergenceEvent{
		BaseEvent:   events.NewBaseEvent(),
		DialogID:    run.msg.DialogID,
		ActualMode:  actual,
		ShadowMode:  shadow,
		WaitReason:  d.WaitReason,
		RequestType: run.reqType,
	})
}

func (o *Orchestrator) reply(ctx context.Context, run pipelineRun, text string) {
	if o.deps.Replier == nil || text == "" {
		return
	}
	if err := o.deps.Replier.Send(ctx, run.msg.DialogID, text); err != nil {
		o.deps.Log.WithContext(ctx).BackendError("reply_send", err)
		return
	}
	run.session.AppendTurn(session.RoleBot, text, 0, "REPLY", run.now, o.deps.HistoryMaxTurns)
	run.session.State.LastReply = text
}

func (o *Orchestrator) persist(ctx context.Context, s *session.Session) {
	s.Touch(o.now())
	if err := o.deps.Store.Put(ctx, o.deps.ScopeID, s.DialogID, s); err != nil {
		o.deps.Log.WithContext(ctx).BackendError("session_save", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(ctx, ev)
	}
}

func (o *Orchestrator) stageKey(lead *Lead) string {
	if lead == nil {
		return ""
	}
	return o.deps.Settings.StageKeyFor(lead.StatusID)
}

func leadOEM(lead *Lead) string {
	if lead == nil {
		return ""
	}
	return lead.OEM
}

// stageFor picks the funnel stage a decision moves the lead to: manual waits
// park on the deep-pick stage, automatic starts go to in-work.
func stageFor(d Decision) string {
	if d.Mode == session.ModeManual {
		return crm.StageVinPick
	}
	return crm.StageInWork
}

func replyText(d Decision) string {
	switch d.ReplyType {
	case ReplyManualAck:
		return manualAckText
	case ReplyAutoStart, ReplyManualTrigger:
		return autoStartText
	default:
		return ""
	}
}

// routeLabel summarizes a finished run for shadow comparison.
func routeLabel(d Decision, calledFlow bool) string {
	if calledFlow {
		return "FLOW"
	}
	if d.ReplyType != "" {
		return d.ReplyType
	}
	if d.WaitReason != "" {
		return d.WaitReason
	}
	return "SILENT"
}
