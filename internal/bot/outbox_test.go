package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tgsender "github.com/m3rciful/keybot/core/telegram/sender"
	"github.com/m3rciful/keybot/internal/session"
)

type sentMessage struct {
	to   string
	what any
	opts []any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{to: to.Recipient(), what: what, opts: opts})
	return &tele.Message{}, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func outcomeActions() []session.Action {
	return []session.Action{
		{Kind: session.ActionText, ChatID: chatID, Text: "*bold*", Markdown: true},
		{Kind: session.ActionKeyboard, ChatID: chatID, Text: "menu", Keyboard: [][]string{{"A", "B"}, {"C"}}},
		{Kind: session.ActionPhoto, ChatID: chatID, File: "/srv/media/guide-en.png", Caption: "guide"},
		{Kind: session.ActionVideo, ChatID: chatID, File: "/srv/media/howto-en.mp4"},
	}
}

func assertRendered(t *testing.T, sent []sentMessage) {
	t.Helper()
	require.Len(t, sent, 4)
	for _, m := range sent {
		assert.Equal(t, "501", m.to)
	}

	assert.Equal(t, "*bold*", sent[0].what)
	require.Len(t, sent[0].opts, 1)
	opts := sent[0].opts[0].(*tele.SendOptions)
	assert.Equal(t, tele.ModeMarkdown, opts.ParseMode)
	assert.Nil(t, opts.ReplyMarkup)

	assert.Equal(t, "menu", sent[1].what)
	kb := sent[1].opts[0].(*tele.SendOptions).ReplyMarkup
	require.NotNil(t, kb)
	require.Len(t, kb.ReplyKeyboard, 2)
	assert.Equal(t, "C", kb.ReplyKeyboard[1][0].Text)

	photo, ok := sent[2].what.(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "guide", photo.Caption)
	assert.Equal(t, "/srv/media/guide-en.png", photo.File.FileLocal)

	video, ok := sent[3].what.(*tele.Video)
	require.True(t, ok)
	assert.Equal(t, "/srv/media/howto-en.mp4", video.File.FileLocal)
}

func TestDeliverQueuesOneOrderedJob(t *testing.T) {
	jobs := tgsender.NewDispatcher(tgsender.Options{Workers: 2, RetryBackoff: time.Millisecond})
	out := NewOutbox(jobs)
	s := &fakeSender{}
	out.Attach(s)

	del, err := out.Deliver(context.Background(), chatID, outcomeActions())
	require.NoError(t, err)
	assert.True(t, del.Queued)
	assert.True(t, del.Keyboard)
	assert.Equal(t, 4, del.Messages)

	jobs.Close()
	assertRendered(t, s.messages())
}

func TestDeliverRunsInlineWhenQueueIsClosed(t *testing.T) {
	jobs := tgsender.NewDispatcher(tgsender.Options{Workers: 1, RetryBackoff: time.Millisecond})
	jobs.Close()
	out := NewOutbox(jobs)
	s := &fakeSender{}
	out.Attach(s)

	del, err := out.Deliver(context.Background(), chatID, outcomeActions())
	require.NoError(t, err)
	assert.False(t, del.Queued)
	assertRendered(t, s.messages())
}

func TestDeliverWithoutDispatcherIsSynchronous(t *testing.T) {
	out := NewOutbox(nil)
	s := &fakeSender{err: errors.New("forbidden")}
	out.Attach(s)

	_, err := out.Deliver(context.Background(), chatID, outcomeActions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendMessage")
}

func TestDeliverNeedsSender(t *testing.T) {
	out := NewOutbox(nil)
	_, err := out.Deliver(context.Background(), chatID, outcomeActions())
	assert.ErrorIs(t, err, ErrNotAttached)

	del, err := out.Deliver(context.Background(), chatID, nil)
	require.NoError(t, err)
	assert.Zero(t, del.Messages)
}
