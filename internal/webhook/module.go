// Package webhook: module wiring and route registration.
package webhook

import (
	apphttp "github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/http"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/validator"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook module.
func NewModule(dispatcher Dispatcher, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(dispatcher, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/bot/events", m.handler.HandleMessageEvent)
}
