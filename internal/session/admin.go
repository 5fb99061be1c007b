package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/internal/message"
)

func (t *turn) isAdmin() bool {
	return t.m.IsAdmin(t.in.Message.Username)
}

// adminGate answers /admin.
func (t *turn) adminGate() {
	if !t.isAdmin() {
		logger.Warn(t.ctx, logger.CompSession, "admin.denied", slog.String("reject", "not_admin"))
		t.home("MSG_HOME")
		return
	}
	t.adminMenu()
}

func (t *turn) adminMenu() {
	t.keyboard(t.texts.Text("MSG_ADMIN_HOME"), adminKeyboard(t.texts))
	t.moveTo(AdminHome)
}

func (t *turn) admin(msg message.Message) {
	if !t.isAdmin() {
		logger.Warn(t.ctx, logger.CompSession, "admin.denied", slog.String("reject", "not_admin"))
		t.home("MSG_HOME")
		return
	}

	switch t.in.State {
	case AdminBanUser:
		t.moderate(msg, t.m.accounts.BanUser, "MSG_ADMIN_USER_BANNED", "banned")
	case AdminUnbanUser:
		t.moderate(msg, t.m.accounts.UnbanUser, "MSG_ADMIN_USER_UNBANNED", "unbanned")
	default:
		switch msg.Body {
		case t.texts.Text("MENU_ADMIN_BAN_USER"):
			t.keyboard(t.texts.Text("MSG_ADMIN_ASK_USER"), backKeyboard(t.texts))
			t.moveTo(AdminBanUser)
		case t.texts.Text("MENU_ADMIN_UNBAN_USER"):
			t.keyboard(t.texts.Text("MSG_ADMIN_ASK_USER"), backKeyboard(t.texts))
			t.moveTo(AdminUnbanUser)
		default:
			t.adminMenu()
		}
	}
}

func (t *turn) moderate(msg message.Message, apply func(context.Context, string) (bool, error), doneKey, outcome string) {
	username := strings.TrimSpace(msg.Body)
	found, err := apply(t.ctx, username)
	switch {
	case err != nil:
		logger.Error(t.ctx, logger.CompSession, "admin.moderate", slog.String("status", "fail"), logger.Err(err))
		t.sayKey("MSG_ERROR")
	case !found:
		t.sayKey("MSG_ADMIN_USER_NOT_FOUND")
	default:
		logger.Info(t.ctx, logger.CompSession, "admin.moderate",
			slog.String("status", "ok"),
			slog.String("outcome", outcome),
		)
		t.sayKey(doneKey)
	}
	t.adminMenu()
}
