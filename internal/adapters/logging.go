// Package adapters holds default implementations of the dialog pipeline's
// outbound seams. A deployment replaces these with its chat transport, CRM
// client and parts-lookup flows; the defaults only log, so the core runs
// end to end without external services.
package adapters

import (
	"context"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/dialog"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
)

// LogReplier logs outbound replies instead of delivering them.
type LogReplier struct {
	Log *logger.Logger
}

func (r *LogReplier) Send(ctx context.Context, dialogID, text string) error {
	r.Log.WithContext(ctx).Info("reply_out", "dialog_id", dialogID, "text", text)
	return nil
}

// LogCRM logs lead mutations instead of applying them.
type LogCRM struct {
	Log *logger.Logger
}

func (c *LogCRM) WriteOEM(ctx context.Context, leadID int64, oem string) error {
	c.Log.WithContext(ctx).Info("lead_oem_write", "lead_id", leadID, "oem", oem)
	return nil
}

func (c *LogCRM) MoveStage(ctx context.Context, leadID int64, stageKey string) error {
	c.Log.WithContext(ctx).Info("lead_stage_move", "lead_id", leadID, "stage", stageKey)
	return nil
}

// LogFlow records flow invocations. It reports handled=true so the pipeline
// treats the message as consumed.
type LogFlow struct {
	FlowName string
	Log      *logger.Logger
}

func (f *LogFlow) Name() string { return f.FlowName }

func (f *LogFlow) Handle(ctx context.Context, fc *dialog.FlowContext) (bool, error) {
	f.Log.WithContext(ctx).Info("flow_invoked",
		"flow", f.FlowName,
		"dialog_id", fc.Message.DialogID,
		"request_type", fc.RequestType,
		"tokens", len(fc.Tokens),
		"reply_type", fc.Decision.ReplyType,
	)
	return true, nil
}

var (
	_ dialog.Replier = (*LogReplier)(nil)
	_ dialog.CRMPort = (*LogCRM)(nil)
	_ dialog.Flow    = (*LogFlow)(nil)
)
