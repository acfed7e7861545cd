package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"phrasebot/pkg/bus"
	"phrasebot/pkg/config"
)

const (
	// OpReply is the user-facing reply send.
	OpReply = "reply"
	// OpOwnerNotify is the out-of-band owner notification send.
	OpOwnerNotify = "owner_notify"
	// OpDispatch marks a contained unexpected failure of the whole cycle.
	OpDispatch = "dispatch"
)

// Transport is the send capability a channel adapter hands to the engine for
// one dispatch cycle.
type Transport interface {
	Send(ctx context.Context, chatID string, text string) error
	NotifyOwner(ctx context.Context, recipientID string, text string) error
}

// OpError records the failure of one send operation within a dispatch cycle.
type OpError struct {
	Op  string
	Err error
}

func (e OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e OpError) Unwrap() error {
	return e.Err
}

// Outcome aggregates the independent results of one dispatch cycle.
//
// OwnerNotified is nil when no notification was attempted, either because the
// decision does not notify or because no owner is configured. Errors never
// escape as a crash; the caller's loop continues regardless.
type Outcome struct {
	Decision      Decision
	ReplySent     bool
	OwnerNotified *bool
	Errors        []OpError
}

// Failed reports whether any send in the cycle failed.
func (o Outcome) Failed() bool {
	return len(o.Errors) > 0
}

// Engine coordinates selection and dispatch for inbound messages.
type Engine struct {
	selector *Selector
	ownerID  string
	events   *bus.MessageBus
	log      *slog.Logger
	now      func() time.Time
}

// NewEngine validates the responder configuration and builds the dispatch
// engine. An empty ownerID disables owner notifications. The event bus is
// optional.
func NewEngine(cfg config.ResponderConfig, ownerID string, events *bus.MessageBus, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		selector: NewSelector(cfg),
		ownerID:  strings.TrimSpace(ownerID),
		events:   events,
		log:      log.With("component", "responder.engine"),
		now:      time.Now,
	}, nil
}

// Handle runs one dispatch cycle: select a decision, send the reply, and
// independently send the owner notification when the decision calls for one.
//
// A failed owner notification never surfaces as a failed reply and vice
// versa; both results are recorded in the outcome. Panics inside the cycle
// are contained here so the polling loop survives to the next message.
func (e *Engine) Handle(ctx context.Context, msg bus.InboundMessage, transport Transport) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("dispatch panic: %v", r)
			outcome.Errors = append(outcome.Errors, OpError{Op: OpDispatch, Err: err})
			e.log.Error("Dispatch cycle failed unexpectedly", "chat_id", msg.ChatID, "sender_id", msg.SenderID, "content", msg.Content, "error", err)
			e.publish(ctx, bus.EventDispatchFailed, msg, nil, err)
		}
	}()

	e.publish(ctx, bus.EventMessageReceived, msg, nil, nil)

	decision := e.selector.Select(msg)
	outcome.Decision = decision

	if err := transport.Send(ctx, msg.ChatID, decision.Reply); err != nil {
		outcome.Errors = append(outcome.Errors, OpError{Op: OpReply, Err: err})
		e.log.Error("Failed to send reply", "chat_id", msg.ChatID, "sender_id", msg.SenderID, "kind", string(decision.Kind), "error", err)
		e.publish(ctx, bus.EventDispatchFailed, msg, map[string]string{"op": OpReply}, err)
	} else {
		outcome.ReplySent = true
		e.publish(ctx, bus.EventReplySent, msg, map[string]string{"kind": string(decision.Kind)}, nil)
	}

	if !decision.NotifyOwner {
		return outcome
	}

	if e.ownerID == "" {
		e.log.Warn("Owner notification skipped: no owner configured", "chat_id", msg.ChatID)
		return outcome
	}

	notified := false
	if err := transport.NotifyOwner(ctx, e.ownerID, e.ownerNotification(msg, decision)); err != nil {
		outcome.Errors = append(outcome.Errors, OpError{Op: OpOwnerNotify, Err: err})
		e.log.Error("Failed to send owner notification", "owner_id", e.ownerID, "sender_id", msg.SenderID, "error", err)
		e.publish(ctx, bus.EventDispatchFailed, msg, map[string]string{"op": OpOwnerNotify}, err)
	} else {
		notified = true
		e.publish(ctx, bus.EventOwnerNotified, msg, map[string]string{"phrase": decision.MatchedPhrase}, nil)
	}
	outcome.OwnerNotified = &notified

	return outcome
}

// ownerNotification formats the out-of-band message so the owner can see who
// triggered the match and with what text.
func (e *Engine) ownerNotification(msg bus.InboundMessage, decision Decision) string {
	var b strings.Builder
	b.WriteString("Key phrase detected!\n\n")
	fmt.Fprintf(&b, "Sender: %s\n", msg.SenderID)
	if username := msg.Metadata["username"]; username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", username)
	}
	fmt.Fprintf(&b, "Phrase: %s\n", decision.MatchedPhrase)
	fmt.Fprintf(&b, "Message: %s\n", msg.Content)
	fmt.Fprintf(&b, "Time: %s", e.now().UTC().Format("2006-01-02 15:04:05 UTC"))

	return b.String()
}

func (e *Engine) publish(ctx context.Context, eventType bus.EventType, msg bus.InboundMessage, payload map[string]string, err error) {
	if e.events == nil {
		return
	}

	event := bus.Event{
		Type:     eventType,
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		SenderID: msg.SenderID,
		Payload:  payload,
	}
	if err != nil {
		event.Error = err.Error()
	}

	e.events.PublishEvent(ctx, event)
}
