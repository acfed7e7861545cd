package channel

import (
	"context"

	"phrasebot/pkg/bus"
	"phrasebot/pkg/responder"
)

// Handler runs one dispatch cycle for an inbound message, using the transport
// the adapter provides for its sends.
type Handler func(context.Context, bus.InboundMessage, responder.Transport) responder.Outcome

// Adapter bridges one external transport (for example Telegram) into the bot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
