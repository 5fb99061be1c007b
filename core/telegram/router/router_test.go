package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/keybot/core/logger"
	tg "github.com/m3rciful/keybot/core/telegram"
	"github.com/m3rciful/keybot/core/telegram/commands"
)

type codedError struct{}

func (codedError) Error() string { return "coded" }
func (codedError) Code() string  { return "bad input" }

type plainError struct{}

func (*plainError) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{codedError{}, "BAD_INPUT"},
		{fmt.Errorf("wrap: %w", codedError{}), "BAD_INPUT"},
		{&plainError{}, "PLAINERROR"},
	}
	for _, tc := range cases {
		if got := deriveErrorCode(tc.err); got != tc.want {
			t.Fatalf("deriveErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	if got := normalizeHandlerName(" /Start Now "); got != "start_now" {
		t.Fatalf("normalizeHandlerName = %q", got)
	}
	if got := normalizeHandlerName(""); got != "unknown" {
		t.Fatalf("empty name = %q", got)
	}
}

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Token: "1:test", Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return bot
}

func TestHandlerPassesUpdateWithRequestContext(t *testing.T) {
	bot := offlineBot(t)
	upd := tele.Update{ID: 31, Message: &tele.Message{
		Chat:   &tele.Chat{ID: 77, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: 77},
		Text:   "hello",
	}}

	var (
		gotUpdate int
		gotRID    string
		gotChat   int64
	)
	h := UpdateHandlerFunc(func(ctx context.Context, u *tele.Update) (Summary, error) {
		gotUpdate = u.ID
		gotRID = logger.RIDFrom(ctx)
		gotChat = logger.ChatIDFrom(ctx)
		return Summary{Messages: 2, Keyboard: true}, nil
	})

	if err := Handler(h, "update.text")(bot.NewContext(upd)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if gotUpdate != 31 || gotChat != 77 {
		t.Fatalf("update %d chat %d", gotUpdate, gotChat)
	}
	if gotRID == "" {
		t.Fatal("request id missing from context")
	}
}

func TestHandlerReturnsHandlerError(t *testing.T) {
	bot := offlineBot(t)
	boom := errors.New("boom")
	h := UpdateHandlerFunc(func(context.Context, *tele.Update) (Summary, error) {
		return Summary{}, boom
	})
	err := Handler(h, "update.text")(bot.NewContext(tele.Update{ID: 1}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestUpdateRoutesCoverEveryEndpoint(t *testing.T) {
	h := UpdateHandlerFunc(func(context.Context, *tele.Update) (Summary, error) { return Summary{}, nil })
	routes := UpdateRoutes(h)
	if len(routes) != len(updateEndpoints) {
		t.Fatalf("routes = %d, want %d", len(routes), len(updateEndpoints))
	}
	seen := map[any]bool{}
	for _, r := range routes {
		if r.Handler == nil || seen[r.Endpoint] {
			t.Fatalf("bad route %v", r.Endpoint)
		}
		seen[r.Endpoint] = true
	}
	if !seen[tele.OnCallback] || !seen[tele.OnMyChatMember] {
		t.Fatal("callback or member endpoint missing")
	}
	if UpdateRoutes(nil) != nil {
		t.Fatal("nil handler must yield no routes")
	}
}

func TestCommandRoutesIncludeAliases(t *testing.T) {
	reg := tg.NewRegistry()
	calls := 0
	reg.RegisterCommand("/start", commands.Command{
		Description: "Start",
		Aliases:     []string{"/begin"},
		Handler:     func(tele.Context) error { calls++; return nil },
	})

	routes := CommandRoutes(reg)
	if len(routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(routes))
	}
	bot := offlineBot(t)
	for _, r := range routes {
		if err := r.Handler(bot.NewContext(tele.Update{ID: 2})); err != nil {
			t.Fatalf("%v: %v", r.Endpoint, err)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}
