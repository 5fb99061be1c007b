package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/keybot/core/telegram/sender"
	"github.com/m3rciful/keybot/internal/session"
)

// ErrNotAttached is returned by Deliver before a Sender has been attached.
var ErrNotAttached = errors.New("bot: outbox has no sender attached")

// Sender is the subset of *tele.Bot the outbox needs.
type Sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// Delivery describes what Deliver handed over.
type Delivery struct {
	Messages int
	Keyboard bool
	// Queued is false when the actions were sent synchronously.
	Queued bool
}

type senderBox struct{ Sender }

// Outbox renders session actions into telebot calls and runs them as one sender job per
// outcome, so a chat's replies stay ordered.
type Outbox struct {
	jobs *tgsender.Dispatcher
	bot  atomic.Pointer[senderBox]
}

// NewOutbox returns an Outbox running jobs on d. A nil d sends synchronously.
func NewOutbox(d *tgsender.Dispatcher) *Outbox {
	return &Outbox{jobs: d}
}

// Attach sets the Sender used for every following delivery.
func (o *Outbox) Attach(s Sender) {
	if s == nil {
		o.bot.Store(nil)
		return
	}
	o.bot.Store(&senderBox{s})
}

// Deliver queues actions for chatID. When the queue refuses the job it is run on the
// calling goroutine instead.
func (o *Outbox) Deliver(ctx context.Context, chatID int64, actions []session.Action) (Delivery, error) {
	del := Delivery{Messages: len(actions)}
	if len(actions) == 0 {
		return del, nil
	}
	box := o.bot.Load()
	if box == nil {
		return Delivery{}, ErrNotAttached
	}

	steps := make([]tgsender.Step, 0, len(actions))
	for _, a := range actions {
		if a.Kind == session.ActionKeyboard {
			del.Keyboard = true
		}
		steps = append(steps, render(box.Sender, chatID, a))
	}

	if o.jobs == nil {
		for _, step := range steps {
			if err := step.Run(); err != nil {
				return del, fmt.Errorf("bot: %s: %w", step.Endpoint, err)
			}
		}
		return del, nil
	}

	job := o.jobs.NewJob(chatID, "reply", steps...)
	err := o.jobs.Enqueue(ctx, job)
	if err == nil {
		del.Queued = true
		return del, nil
	}
	if !errors.Is(err, tgsender.ErrQueueFull) && !errors.Is(err, tgsender.ErrQueueClosed) {
		return del, err
	}
	logger.Warn(ctx, logger.CompSender, "queue.fallback",
		slog.String("job_id", job.ID.String()),
		slog.Int("steps", len(steps)),
		logger.Err(err),
	)
	if rep := o.jobs.Run(ctx, job); rep.Err != nil {
		return del, rep.Err
	}
	return del, nil
}

func render(s Sender, chatID int64, a session.Action) tgsender.Step {
	to := tele.ChatID(chatID)
	switch a.Kind {
	case session.ActionPhoto:
		photo := &tele.Photo{File: tele.FromDisk(a.File), Caption: a.Caption}
		return tgsender.Step{Endpoint: "sendPhoto", Run: func() error {
			_, err := s.Send(to, photo)
			return err
		}}
	case session.ActionVideo:
		video := &tele.Video{File: tele.FromDisk(a.File), Caption: a.Caption}
		return tgsender.Step{Endpoint: "sendVideo", Run: func() error {
			_, err := s.Send(to, video)
			return err
		}}
	}

	opts := &tele.SendOptions{}
	if a.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	if a.Kind == session.ActionKeyboard {
		opts.ReplyMarkup = keyboard.ReplyButtons(a.Keyboard...)
	}
	text := a.Text
	return tgsender.Step{Endpoint: "sendMessage", Run: func() error {
		_, err := s.Send(to, text, opts)
		return err
	}}
}
