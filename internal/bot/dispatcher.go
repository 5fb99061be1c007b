// Package bot connects the Telegram transport to the session state machine: it turns
// updates into messages, loads and stores chat state and hands replies to the sender.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/core/telegram/router"
	"github.com/m3rciful/keybot/internal/i18n"
	"github.com/m3rciful/keybot/internal/message"
	"github.com/m3rciful/keybot/internal/session"
	"github.com/m3rciful/keybot/internal/store"
)

// Handler decides the reaction to one message.
type Handler interface {
	Handle(ctx context.Context, in session.Input) session.Outcome
}

// Deliverer sends the actions of one outcome to chatID in order.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, actions []session.Action) (Delivery, error)
}

// Hasher turns a platform user id into the opaque handle used everywhere else.
type Hasher interface {
	Hash(uid string) string
}

// DispatcherConfig holds the message filtering settings.
type DispatcherConfig struct {
	DefaultLanguage string
	Languages       []string
	// SupportedTypes lists the message types that reach the state machine.
	SupportedTypes []message.Type
}

// Dispatcher runs one update through parse, state load, the machine, delivery and
// persistence.
type Dispatcher struct {
	cfg     DispatcherConfig
	hasher  Hasher
	store   store.StateStore
	catalog *i18n.Catalog
	machine Handler
	out     Deliverer
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(cfg DispatcherConfig, hasher Hasher, st store.StateStore, catalog *i18n.Catalog, machine Handler, out Deliverer) *Dispatcher {
	return &Dispatcher{cfg: cfg, hasher: hasher, store: st, catalog: catalog, machine: machine, out: out}
}

// HandleUpdate parses upd and dispatches it. Rejected and filtered updates are logged and
// reported as skipped without error.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd *tele.Update) (router.Summary, error) {
	msg, err := message.Parse(upd, d.cfg.DefaultLanguage, d.cfg.Languages...)
	if err != nil {
		var rej *message.Rejection
		if !errors.As(err, &rej) {
			return router.Summary{}, err
		}
		level := slog.LevelInfo
		if rej.Kind == message.Malformed {
			level = slog.LevelWarn
		}
		logger.Event(ctx, logger.CompDispatch, level, "dispatch.reject",
			slog.String("reject", rej.Code()),
			slog.String("reason", rej.Reason),
		)
		return skipped(), nil
	}

	msg.UserUID = d.hasher.Hash(msg.UserUID)
	ctx = logger.WithUser(ctx, msg.UserUID)

	if !slices.Contains(d.cfg.SupportedTypes, msg.Type) {
		logger.Debug(ctx, logger.CompDispatch, "dispatch.skip",
			slog.String("msg_type", string(msg.Type)),
			slog.String("reject", "type_not_supported"),
		)
		return skipped(), nil
	}
	if msg.ChatID == 0 {
		logger.Debug(ctx, logger.CompDispatch, "dispatch.skip",
			slog.String("msg_type", string(msg.Type)),
			slog.String("reject", "no_chat"),
		)
		return skipped(), nil
	}
	return d.Dispatch(ctx, msg)
}

// Dispatch handles an already parsed message whose UserUID is hashed.
func (d *Dispatcher) Dispatch(ctx context.Context, msg message.Message) (router.Summary, error) {
	lang := d.language(ctx, msg)

	st, stored, err := d.store.State(ctx, msg.ChatID)
	if err != nil {
		logger.Error(ctx, logger.CompDispatch, "state.load", slog.String("status", "fail"), logger.Err(err))
		errText := session.Action{Kind: session.ActionText, ChatID: msg.ChatID, Text: d.catalog.For(lang).Text("MSG_ERROR")}
		del, derr := d.out.Deliver(ctx, msg.ChatID, []session.Action{errText})
		return summarize(del), errors.Join(fmt.Errorf("bot: load state: %w", err), derr)
	}

	out := d.machine.Handle(ctx, session.Input{State: st, Stored: stored, Lang: lang, Message: msg})

	del, deliverErr := d.out.Deliver(ctx, msg.ChatID, out.Actions)
	if deliverErr != nil {
		logger.Warn(ctx, logger.CompDispatch, "deliver", slog.String("status", "fail"), logger.Err(deliverErr))
	}

	persistErr := d.persist(ctx, msg.ChatID, out)
	sum := summarize(del)
	if out.Persist {
		sum.Attrs = append(sum.Attrs, slog.String("next_state", out.Next.String()))
	}
	return sum, errors.Join(deliverErr, persistErr)
}

// language prefers the stored choice and falls back to the parsed client language.
func (d *Dispatcher) language(ctx context.Context, msg message.Message) string {
	lang, ok, err := d.store.Language(ctx, msg.ChatID)
	if err != nil {
		logger.Warn(ctx, logger.CompDispatch, "language.load", slog.String("status", "fail"), logger.Err(err))
		return msg.Lang
	}
	if !ok || lang == "" || !d.catalog.Supports(lang) {
		return msg.Lang
	}
	return lang
}

func (d *Dispatcher) persist(ctx context.Context, chatID int64, out session.Outcome) error {
	if out.Reset {
		if err := d.store.Reset(ctx, chatID); err != nil {
			return d.storeFailed(ctx, "state.reset", err)
		}
	}
	if out.Language != "" {
		if err := d.store.SetLanguage(ctx, chatID, out.Language); err != nil {
			return d.storeFailed(ctx, "language.save", err)
		}
	}
	if out.Persist {
		if err := d.store.SetState(ctx, chatID, out.Next); err != nil {
			return d.storeFailed(ctx, "state.save", err)
		}
		logger.Debug(ctx, logger.CompDispatch, "state.save",
			slog.String("status", "ok"),
			slog.String("next_state", out.Next.String()),
		)
	}
	return nil
}

func (d *Dispatcher) storeFailed(ctx context.Context, event string, err error) error {
	logger.Error(ctx, logger.CompDispatch, event, slog.String("status", "fail"), logger.Err(err))
	return fmt.Errorf("bot: %s: %w", event, err)
}

func skipped() router.Summary {
	return router.Summary{Outcome: "skip"}
}

func summarize(del Delivery) router.Summary {
	return router.Summary{Messages: del.Messages, Keyboard: del.Keyboard}
}
