package session

import (
	"log/slog"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/internal/accounts"
	"github.com/m3rciful/keybot/internal/message"
)

func (t *turn) homeMenu(msg message.Message) {
	switch msg.Body {
	case t.texts.Text("MENU_CHECK_STATUS"):
		t.checkStatus()
	case t.texts.Text("MENU_HOME_NEW_KEY"):
		t.newKey()
	case t.texts.Text("MENU_HOME_DELETE_ACCOUNT"):
		t.askDeleteReason()
	case t.texts.Text("MENU_HOME_FAQ"):
		t.sayKey("MSG_FAQ_URL")
		t.homeKeyboardOnly()
	case t.texts.Text("MENU_HOME_INSTRUCTION"):
		t.instructions()
	case t.texts.Text("MENU_HOME_CHANGE_LANGUAGE"):
		t.languagePicker()
	case t.texts.Text("MENU_HOME_PRIVACY_POLICY"):
		if link := t.m.cfg.PrivacyURL[t.lang]; link != "" {
			t.say(t.texts.Textf("MSG_PRIVACY_POLICY", link))
		}
		t.homeKeyboardOnly()
	case t.texts.Text("MENU_HOME_SUPPORT"):
		t.sayKey("MSG_SUPPORT_BOT")
		if t.m.cfg.SupportBot != "" {
			t.say(t.m.cfg.SupportBot)
		}
		t.homeKeyboardOnly()
	default:
		t.fallback(msg)
	}
}

// noAccount points users without a record back at /start.
func (t *turn) noAccount() {
	t.sayMarkdown(t.texts.Text("MSG_NO_ACCOUNT"))
	t.say("/" + CommandStart)
}

func (t *turn) checkStatus() {
	acc, err := t.m.accounts.GetAccount(t.ctx, t.uid)
	if err != nil {
		t.fail("status.account", err)
		return
	}
	if acc == nil {
		t.noAccount()
		return
	}
	if acc.Banned {
		t.sayKey("MSG_ACCOUNT_INFO_BANNED")
	} else {
		t.sayKey("MSG_ACCOUNT_INFO_OK")
		for _, key := range acc.Keys {
			info, err := t.m.accounts.GetServerInfo(t.ctx, key.Server)
			if err != nil {
				t.fail("status.server", err)
				return
			}
			blocked, active := false, true
			if info != nil {
				blocked, active = info.Blocked, info.Active
			}
			if blocked {
				t.sayKey("MSG_SERVER_INFO_BLOCKED")
			} else {
				t.sayKey("MSG_SERVER_INFO_OK")
			}
			if active {
				t.sayKey("MSG_SERVER_INFO_ACTIVE")
			} else {
				t.sayKey("MSG_SERVER_INFO_INACTIVE")
			}
		}
	}
	t.homeKeyboardOnly()
}

func (t *turn) newKey() {
	acc, err := t.m.accounts.GetAccount(t.ctx, t.uid)
	if err != nil {
		t.fail("key.account", err)
		return
	}
	switch {
	case acc == nil || acc.Username == "":
		t.noAccount()
	case acc.Banned:
		t.sayKey("MSG_ACCOUNT_INFO_BANNED")
		t.home("MSG_HOME_ELSE")
	case len(acc.Keys) == 0:
		// no issue picker yet, see AccountService.ListIssues
		if !t.createKey(nil) {
			return
		}
		t.home("MSG_HOME_ELSE")
	default:
		t.existingKey()
	}
}

// createKey provisions a key and announces it. On failure the user has been told and the
// caller must leave the state alone.
func (t *turn) createKey(issueID *int64) bool {
	t.sayKey("MSG_WAIT")
	grant, err := t.m.accounts.RequestNewKey(t.ctx, t.uid, issueID)
	if err != nil {
		t.fail("key.create", err)
		return false
	}
	if len(grant.Keys) == 0 {
		logger.Warn(t.ctx, logger.CompSession, "key.create", slog.String("outcome", "no_key"))
		t.sayKey("MSG_ERROR_NO_KEY")
		t.out.Persist = false
		return false
	}
	t.sayMarkdown(t.texts.Text("MSG_OUTLINE_SSL_CONF"))
	t.sayMarkdown(t.texts.Textf("MSG_NEW_KEY_A", t.tagged(t.invitationURL(grant.ConfigLink))))
	t.sayMarkdown(t.texts.Text("MSG_NEW_KEY_B"))
	t.say(t.tagged(grant.ConfigLink))
	logger.Info(t.ctx, logger.CompSession, "key.create", slog.String("status", "ok"), slog.Int("keys", len(grant.Keys)))
	return true
}

func (t *turn) existingKey() {
	t.sayKey("MSG_OUTLINE_RETURNING_USER")
	link, err := t.m.accounts.GetOnlineConfig(t.ctx, t.uid)
	if err != nil {
		t.fail("key.config", err)
		return
	}
	t.sayMarkdown(t.texts.Textf("MSG_EXISTING_KEY_A", t.tagged(t.invitationURL(link))))
	t.sayMarkdown(t.texts.Text("MSG_EXISTING_KEY_B"))
	t.say(t.tagged(link))
	t.home("MSG_HOME_ELSE")
}

func (t *turn) instructions() {
	if photo := t.mediaPath(t.m.cfg.InstructionPhoto); photo != "" {
		t.photo(photo, t.texts.Text("MENU_HOME_INSTRUCTION"))
	}
	if video := t.mediaPath(t.m.cfg.InstructionVideo); video != "" {
		t.video(video)
	}
	t.homeKeyboardOnly()
}

func (t *turn) deleteReasons() ([]accounts.Option, bool) {
	reasons, err := t.m.accounts.ListDeleteReasons(t.ctx, t.lang)
	if err != nil {
		t.fail("delete.reasons", err)
		return nil, false
	}
	return reasons, true
}

func (t *turn) askDeleteReason() {
	reasons, ok := t.deleteReasons()
	if !ok {
		return
	}
	labels := make([]string, len(reasons))
	for i, r := range reasons {
		labels[i] = r.Label
	}
	rows := append(chunk(labels, reasonsPerRow), []string{t.texts.Text("MENU_BACK_HOME")})
	t.keyboard(t.texts.Text("MSG_ASK_DELETE_REASONS"), rows)
	t.moveTo(DeleteAccountReason)
}

func (t *turn) deleteReason(msg message.Message) {
	reasons, ok := t.deleteReasons()
	if !ok {
		return
	}
	var (
		reasonID int64
		found    bool
	)
	for _, r := range reasons {
		if r.Label == msg.Body {
			reasonID, found = r.ID, true
			break
		}
	}
	if !found {
		t.sayKey("MSG_UNSUPPORTED_COMMAND")
		return
	}

	deleted, err := t.m.accounts.DeleteAccount(t.ctx, t.uid, reasonID)
	if err != nil {
		t.fail("account.delete", err)
		return
	}
	if !deleted {
		logger.Warn(t.ctx, logger.CompSession, "account.delete", slog.String("outcome", "not_found"))
		t.sayKey("MSG_ERROR")
		return
	}
	logger.Info(t.ctx, logger.CompSession, "account.delete", slog.String("status", "ok"), slog.Int64("reason_id", reasonID))
	t.keyboard(t.texts.Text("MSG_DELETED_ACCOUNT"), backKeyboard(t.texts))
	t.moveTo(DeleteAccountConfirm)
}
