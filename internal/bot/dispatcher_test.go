package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/keybot/internal/i18n"
	"github.com/m3rciful/keybot/internal/message"
	"github.com/m3rciful/keybot/internal/session"
	"github.com/m3rciful/keybot/internal/store"
)

const chatID int64 = 501

type prefixHasher struct{}

func (prefixHasher) Hash(uid string) string { return "h:" + uid }

type scriptedMachine struct {
	out   session.Outcome
	calls []session.Input
}

func (m *scriptedMachine) Handle(_ context.Context, in session.Input) session.Outcome {
	m.calls = append(m.calls, in)
	return m.out
}

type recordingDeliverer struct {
	mu      sync.Mutex
	actions []session.Action
	err     error
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ int64, actions []session.Action) (Delivery, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, actions...)
	return Delivery{Messages: len(actions)}, d.err
}

type brokenStore struct {
	*store.Memory
	stateErr error
	saveErr  error
}

func (s brokenStore) State(ctx context.Context, id int64) (session.State, bool, error) {
	if s.stateErr != nil {
		return session.State{}, false, s.stateErr
	}
	return s.Memory.State(ctx, id)
}

func (s brokenStore) SetState(ctx context.Context, id int64, st session.State) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Memory.SetState(ctx, id, st)
}

type harness struct {
	disp    *Dispatcher
	store   *store.Memory
	machine *scriptedMachine
	out     *recordingDeliverer
	catalog *i18n.Catalog
}

func newHarness(t *testing.T, types ...message.Type) *harness {
	t.Helper()
	catalog, err := i18n.Load([]string{"en", "fa", "ar"})
	require.NoError(t, err)
	if len(types) == 0 {
		types = []message.Type{message.TypeMessage, message.TypeInline, message.TypeCallback}
	}
	h := &harness{
		store:   store.NewMemory(),
		machine: &scriptedMachine{},
		out:     &recordingDeliverer{},
		catalog: catalog,
	}
	h.disp = NewDispatcher(DispatcherConfig{
		DefaultLanguage: "en",
		Languages:       []string{"en", "fa", "ar"},
		SupportedTypes:  types,
	}, prefixHasher{}, h.store, catalog, h.machine, h.out)
	return h
}

func textUpdate(text string) *tele.Update {
	return &tele.Update{ID: 9, Message: &tele.Message{
		Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: 7001, Username: "alice", LanguageCode: "fa"},
		Text:   text,
	}}
}

func reply(text string) session.Action {
	return session.Action{Kind: session.ActionText, ChatID: chatID, Text: text}
}

func TestHandleUpdateRunsMachineWithHashedUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SetState(ctx, chatID, session.Home))
	require.NoError(t, h.store.SetLanguage(ctx, chatID, "ar"))

	h.machine.out = session.Outcome{
		Next:    session.DeleteAccountReason,
		Persist: true,
		Actions: []session.Action{reply("one"), reply("two")},
	}

	sum, err := h.disp.HandleUpdate(ctx, textUpdate("Delete"))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Messages)

	require.Len(t, h.machine.calls, 1)
	in := h.machine.calls[0]
	assert.Equal(t, "h:7001", in.Message.UserUID)
	assert.Equal(t, session.Home, in.State)
	assert.True(t, in.Stored)
	assert.Equal(t, "ar", in.Lang)

	assert.Len(t, h.out.actions, 2)
	st, ok, err := h.store.State(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session.DeleteAccountReason, st)
}

func TestHandleUpdateUsesClientLanguageWithoutStoredChoice(t *testing.T) {
	h := newHarness(t)
	_, err := h.disp.HandleUpdate(context.Background(), textUpdate("hi"))
	require.NoError(t, err)

	require.Len(t, h.machine.calls, 1)
	assert.Equal(t, "fa", h.machine.calls[0].Lang)
	assert.False(t, h.machine.calls[0].Stored)
}

func TestResetIsAppliedBeforeLanguageAndState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SetLanguage(ctx, chatID, "ar"))
	require.NoError(t, h.store.SetState(ctx, chatID, session.Home))

	h.machine.out = session.Outcome{
		Reset:    true,
		Language: "fa",
		Next:     session.SetLanguage,
		Persist:  true,
	}
	_, err := h.disp.HandleUpdate(ctx, textUpdate("/start"))
	require.NoError(t, err)

	lang, ok, err := h.store.Language(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fa", lang)

	st, _, err := h.store.State(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, session.SetLanguage, st)
}

func TestNoPersistKeepsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SetState(ctx, chatID, session.OptIn))

	h.machine.out = session.Outcome{Next: session.Home, Actions: []session.Action{reply("error")}}
	_, err := h.disp.HandleUpdate(ctx, textUpdate("yes"))
	require.NoError(t, err)

	st, _, err := h.store.State(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, session.OptIn, st)
}

func TestStateLoadFailureSendsGenericError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("db down")
	h.disp.store = brokenStore{Memory: h.store, stateErr: boom}

	_, err := h.disp.HandleUpdate(context.Background(), textUpdate("hi"))
	require.ErrorIs(t, err, boom)

	assert.Empty(t, h.machine.calls)
	require.Len(t, h.out.actions, 1)
	assert.Equal(t, h.catalog.For("fa").Text("MSG_ERROR"), h.out.actions[0].Text)
	assert.Equal(t, chatID, h.out.actions[0].ChatID)
}

func TestStateSaveFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("write failed")
	h.disp.store = brokenStore{Memory: h.store, saveErr: boom}
	h.machine.out = session.Outcome{Next: session.Home, Persist: true, Actions: []session.Action{reply("menu")}}

	_, err := h.disp.HandleUpdate(context.Background(), textUpdate("hi"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, h.out.actions, 1)
}

func TestDeliveryFailureStillPersists(t *testing.T) {
	h := newHarness(t)
	h.out.err = errors.New("telegram down")
	h.machine.out = session.Outcome{Next: session.Home, Persist: true, Actions: []session.Action{reply("menu")}}

	_, err := h.disp.HandleUpdate(context.Background(), textUpdate("hi"))
	require.Error(t, err)

	st, ok, err := h.store.State(context.Background(), chatID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session.Home, st)
}

func TestRejectedUpdatesAreSkipped(t *testing.T) {
	h := newHarness(t)
	group := textUpdate("hi")
	group.Message.Chat.Type = tele.ChatGroup

	for name, upd := range map[string]*tele.Update{
		"group chat": group,
		"poll":       {Poll: &tele.Poll{ID: "p"}},
	} {
		sum, err := h.disp.HandleUpdate(context.Background(), upd)
		require.NoError(t, err, name)
		assert.Equal(t, "skip", sum.Outcome, name)
	}
	assert.Empty(t, h.machine.calls)
	assert.Empty(t, h.out.actions)
}

func TestUnsupportedTypesAreSkipped(t *testing.T) {
	h := newHarness(t, message.TypeMessage)
	cb := &tele.Update{Callback: &tele.Callback{ID: "c", Sender: &tele.User{ID: 7001}, Data: "x"}}

	sum, err := h.disp.HandleUpdate(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, "skip", sum.Outcome)
	assert.Empty(t, h.machine.calls)
}

func TestEventsWithoutChatAreSkipped(t *testing.T) {
	h := newHarness(t, message.TypeMessage, message.TypeMemberUpdate)
	upd := &tele.Update{MyChatMember: &tele.ChatMemberUpdate{
		Chat:          &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
		Sender:        &tele.User{ID: 7001},
		NewChatMember: &tele.ChatMember{Role: tele.Kicked},
	}}

	sum, err := h.disp.HandleUpdate(context.Background(), upd)
	require.NoError(t, err)
	assert.Equal(t, "skip", sum.Outcome)
	assert.Empty(t, h.machine.calls)
}

func TestCatalogOrderPutsDefaultFirst(t *testing.T) {
	assert.Equal(t, []string{"fa", "en", "ar"}, catalogOrder("fa", []string{"en", "fa", "ar"}))
	assert.Equal(t, []string{"en"}, catalogOrder("", []string{"en"}))
}
